package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleReq struct {
	Name    string `json:"name" validate:"required"`
	Contact string `json:"contact_email" validate:"required,email"`
	Seats   int    `json:"seats" validate:"gt=0"`
}

func TestValidateStructMessages(t *testing.T) {
	cases := []struct {
		name     string
		in       sampleReq
		messages map[string]string
		field    string
		msg      string
	}{
		{"default required", sampleReq{}, nil, "name", "name is required"},
		{"tag override", sampleReq{}, map[string]string{"required": "fill everything"}, "name", "fill everything"},
		{"field override wins", sampleReq{}, map[string]string{"required": "generic", "name.required": "name please"}, "name", "name please"},
		{"email", sampleReq{Name: "n", Contact: "nope"}, nil, "contact_email", "Please enter a valid email address"},
		{"gt", sampleReq{Name: "n", Contact: "a@b.io"}, nil, "seats", "seats must be greater than 0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateStruct(tc.in, tc.messages)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
			assert.Equal(t, tc.msg, ve.Message)
		})
	}

	assert.NoError(t, ValidateStruct(sampleReq{Name: "n", Contact: "a@b.io", Seats: 1}, nil))
}

func TestApplicationInputMessages(t *testing.T) {
	in := validInput()
	in.normalize()
	require.NoError(t, in.Validate())

	in.Phone = ""
	err := in.Validate()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "phone", ve.Field)
	assert.Equal(t, "Please fill in all required fields", ve.Message)

	in = validInput()
	in.Expectations = nil
	in.normalize()
	require.ErrorAs(t, in.Validate(), &ve)
	assert.Equal(t, "expectations", ve.Field)
	assert.Equal(t, "Please select at least one expectation from Dreamers", ve.Message)
}
