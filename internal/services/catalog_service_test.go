package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
)

func TestCatalogService_ValidateAirtime(t *testing.T) {
	service := NewCatalogService(nil)

	t.Run("valid request", func(t *testing.T) {
		assert.NoError(t, service.ValidateAirtime("08031234567", "MTN", 10000))
	})

	t.Run("provider is case-insensitive", func(t *testing.T) {
		assert.NoError(t, service.ValidateAirtime("08031234567", "mtn", 10000))
	})

	t.Run("unknown provider", func(t *testing.T) {
		assert.Error(t, service.ValidateAirtime("08031234567", "VODAFONE", 10000))
	})

	t.Run("bad phone number", func(t *testing.T) {
		assert.Error(t, service.ValidateAirtime("12345", "MTN", 10000))
		assert.Error(t, service.ValidateAirtime("0603123456", "MTN", 10000))
	})

	t.Run("below minimum", func(t *testing.T) {
		assert.Error(t, service.ValidateAirtime("08031234567", "MTN", service.AirtimeMin()-1))
	})

	t.Run("fractional Naira rejected", func(t *testing.T) {
		assert.Error(t, service.ValidateAirtime("08031234567", "MTN", 10050))
	})
}

func TestCatalogService_ValidateElectricity(t *testing.T) {
	service := NewCatalogService(nil)

	t.Run("valid request", func(t *testing.T) {
		assert.NoError(t, service.ValidateElectricity("1234567890", "IKEDC", "prepaid", 50000))
	})

	t.Run("bad meter number", func(t *testing.T) {
		assert.Error(t, service.ValidateElectricity("123", "IKEDC", "prepaid", 50000))
	})

	t.Run("bad meter type", func(t *testing.T) {
		assert.Error(t, service.ValidateElectricity("1234567890", "IKEDC", "smart", 50000))
	})

	t.Run("below minimum", func(t *testing.T) {
		assert.Error(t, service.ValidateElectricity("1234567890", "IKEDC", "prepaid", service.ElectricityMin()-1))
	})

	t.Run("fractional Naira rejected", func(t *testing.T) {
		assert.Error(t, service.ValidateElectricity("1234567890", "IKEDC", "prepaid", 50050))
	})
}

func TestCatalogService_ValidateCable(t *testing.T) {
	service := NewCatalogService(nil)

	assert.NoError(t, service.ValidateCable("1234567890", "DSTV"))
	assert.Error(t, service.ValidateCable("1234567890", "NETFLIX"))
	assert.Error(t, service.ValidateCable("12345", "DSTV"))
}

func TestCatalogService_PackageAmount(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves without redis", func(t *testing.T) {
		service := NewCatalogService(nil)

		amount, err := service.PackageAmount(ctx, "dstv-padi")
		assert.NoError(t, err)
		assert.Equal(t, int64(250000), amount)
	})

	t.Run("unknown code", func(t *testing.T) {
		service := NewCatalogService(nil)

		_, err := service.PackageAmount(ctx, "DSTV-PLATINUM")
		assert.Error(t, err)
	})

	t.Run("cache miss populates redis", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		service := NewCatalogService(redisClient)

		redisMock.ExpectGet("pkg:amount:GOTV-MAX").RedisNil()
		redisMock.ExpectSet("pkg:amount:GOTV-MAX", "485000", time.Hour).SetVal("OK")

		amount, err := service.PackageAmount(ctx, "GOTV-MAX")
		assert.NoError(t, err)
		assert.Equal(t, int64(485000), amount)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("cache hit skips the table", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		service := NewCatalogService(redisClient)

		redisMock.ExpectGet("pkg:amount:GOTV-MAX").SetVal("485000")

		amount, err := service.PackageAmount(ctx, "GOTV-MAX")
		assert.NoError(t, err)
		assert.Equal(t, int64(485000), amount)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})
}
