package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStruct_Valid(t *testing.T) {
	v := NewValidator()
	req := BootNotificationReq{ChargePointVendor: "Acme", ChargePointModel: "X1"}
	assert.NoError(t, v.ValidateStruct(&req))
}

func TestValidateStruct_MissingRequired(t *testing.T) {
	v := NewValidator()
	req := BootNotificationReq{}
	err := v.ValidateStruct(&req)
	require.Error(t, err)

	verrs, ok := err.(ValidationErrors)
	require.True(t, ok)
	assert.False(t, verrs.IsPropertyConstraint())
}

func TestValidateStruct_OcppConnectorStatus(t *testing.T) {
	v := NewValidator()
	req := StatusNotificationReq{ConnectorID: 1, ErrorCode: "NoError", Status: "NotAStatus"}
	err := v.ValidateStruct(&req)
	require.Error(t, err)

	verrs := err.(ValidationErrors)
	assert.True(t, verrs.IsPropertyConstraint())
}

func TestValidateStruct_ValidConnectorStatus(t *testing.T) {
	v := NewValidator()
	req := StatusNotificationReq{ConnectorID: 1, ErrorCode: "NoError", Status: "Available"}
	assert.NoError(t, v.ValidateStruct(&req))
}

func TestValidateStruct_OcppAuthStatus(t *testing.T) {
	v := NewValidator()
	info := IDTagInfo{Status: "Accepted"}
	assert.NoError(t, v.ValidateStruct(&info))

	info.Status = "NotAStatus"
	assert.Error(t, v.ValidateStruct(&info))
}
