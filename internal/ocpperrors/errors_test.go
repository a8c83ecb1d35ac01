package ocpperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_BuildsCallErrorWithEmptyDetails(t *testing.T) {
	ce := New(FormationViolation, "bad payload")
	assert.Equal(t, FormationViolation, ce.Code)
	assert.Equal(t, "bad payload", ce.Desc)
	assert.NotNil(t, ce.Details)
}

func TestInternal_WrapsErrorAsInternalError(t *testing.T) {
	ce := Internal(errors.New("boom"))
	assert.Equal(t, InternalError, ce.Code)
	assert.Equal(t, "boom", ce.Desc)
}

func TestCallError_ErrorStringFormat(t *testing.T) {
	ce := New(ProtocolError, "unknown frame type")
	assert.Equal(t, "ProtocolError: unknown frame type", ce.Error())
}
