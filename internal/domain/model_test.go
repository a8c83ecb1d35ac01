package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransaction_OpenWhileUnstopped(t *testing.T) {
	tx := &Transaction{StartTime: time.Now()}
	assert.True(t, tx.Open())
}

func TestTransaction_NotOpenOnceStopped(t *testing.T) {
	stop := time.Now()
	tx := &Transaction{StartTime: stop.Add(-time.Hour), StopTime: &stop}
	assert.False(t, tx.Open())
}

func TestTransaction_TotalEnergy_StillOpenReturnsZero(t *testing.T) {
	tx := &Transaction{MeterStart: 100}
	assert.Equal(t, int64(0), tx.TotalEnergy())
}

func TestTransaction_TotalEnergy_NormalCase(t *testing.T) {
	stop := time.Now()
	meterStop := int64(500)
	tx := &Transaction{MeterStart: 100, MeterStop: &meterStop, StopTime: &stop}
	assert.Equal(t, int64(400), tx.TotalEnergy())
}

func TestTransaction_TotalEnergy_ClampsNegativeToZero(t *testing.T) {
	stop := time.Now()
	meterStop := int64(50)
	tx := &Transaction{MeterStart: 100, MeterStop: &meterStop, StopTime: &stop}
	assert.Equal(t, int64(0), tx.TotalEnergy())
}
