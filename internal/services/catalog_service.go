package services

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

// CatalogService holds the provider allow-lists, the cable package table
// and the per-kind minimum amounts. All of it is configuration, not
// protocol: the settlement engine consults it before any ledger mutation.
type CatalogService struct {
	redis          *redis.Client
	airtimeMin     int64
	electricityMin int64
	packages       map[string]int64
}

var (
	airtimeProviders     = []string{"MTN", "GLO", "AIRTEL", "9MOBILE"}
	electricityProviders = []string{"IKEDC", "EKEDC", "AEDC", "PHED", "KEDCO", "IBEDC"}
	cableProviders       = []string{"DSTV", "GOTV", "STARTIMES"}
	meterTypes           = []string{"prepaid", "postpaid"}

	phoneRegex     = regexp.MustCompile(`^0[789][01]\d{8}$`)
	meterRegex     = regexp.MustCompile(`^\d{10,13}$`)
	smartcardRegex = regexp.MustCompile(`^\d{10}$`)
)

// defaultPackages maps cable package codes to their amounts in kobo.
var defaultPackages = map[string]int64{
	"DSTV-PADI":       250000,
	"DSTV-YANGA":      350000,
	"DSTV-CONFAM":     620000,
	"GOTV-JINJA":      225000,
	"GOTV-JOLLI":      330000,
	"GOTV-MAX":        485000,
	"STARTIMES-NOVA":  120000,
	"STARTIMES-BASIC": 185000,
	"STARTIMES-SMART": 260000,
}

func NewCatalogService(redisClient *redis.Client) *CatalogService {
	viper.SetDefault("bills.airtime_min", 5000)      // 50 Naira
	viper.SetDefault("bills.electricity_min", 50000) // 500 Naira

	return &CatalogService{
		redis:          redisClient,
		airtimeMin:     viper.GetInt64("bills.airtime_min"),
		electricityMin: viper.GetInt64("bills.electricity_min"),
		packages:       defaultPackages,
	}
}

func (s *CatalogService) AirtimeMin() int64     { return s.airtimeMin }
func (s *CatalogService) ElectricityMin() int64 { return s.electricityMin }

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

// ValidateAirtime checks provider, phone format and the configured minimum.
func (s *CatalogService) ValidateAirtime(phone, provider string, amount int64) error {
	if !containsFold(airtimeProviders, provider) {
		return fmt.Errorf("provider must be one of: %s", strings.Join(airtimeProviders, ", "))
	}
	if !phoneRegex.MatchString(phone) {
		return fmt.Errorf("invalid phone number")
	}
	if amount < s.airtimeMin {
		return fmt.Errorf("amount below airtime minimum of %d", s.airtimeMin)
	}
	// The bills API is denominated in Naira, so a sub-100-kobo remainder
	// would be debited but never billed.
	if amount%100 != 0 {
		return fmt.Errorf("amount must be a whole Naira amount in kobo")
	}
	return nil
}

// ValidateElectricity checks provider, meter number, meter type and minimum.
func (s *CatalogService) ValidateElectricity(meterNumber, provider, meterType string, amount int64) error {
	if !containsFold(electricityProviders, provider) {
		return fmt.Errorf("provider must be one of: %s", strings.Join(electricityProviders, ", "))
	}
	if !meterRegex.MatchString(meterNumber) {
		return fmt.Errorf("invalid meter number")
	}
	if !containsFold(meterTypes, meterType) {
		return fmt.Errorf("meter type must be either prepaid or postpaid")
	}
	if amount < s.electricityMin {
		return fmt.Errorf("amount below electricity minimum of %d", s.electricityMin)
	}
	if amount%100 != 0 {
		return fmt.Errorf("amount must be a whole Naira amount in kobo")
	}
	return nil
}

// ValidateCable checks provider and smartcard format. The amount comes
// from PackageAmount, never from the caller.
func (s *CatalogService) ValidateCable(smartcardNumber, provider string) error {
	if !containsFold(cableProviders, provider) {
		return fmt.Errorf("provider must be one of: %s", strings.Join(cableProviders, ", "))
	}
	if !smartcardRegex.MatchString(smartcardNumber) {
		return fmt.Errorf("invalid smartcard number")
	}
	return nil
}

// PackageAmount resolves a cable package code to its fixed amount in kobo,
// through a short-lived Redis cache when Redis is available.
func (s *CatalogService) PackageAmount(ctx context.Context, packageCode string) (int64, error) {
	code := strings.ToUpper(packageCode)

	if s.redis != nil {
		key := fmt.Sprintf("pkg:amount:%s", code)
		if cached, err := s.redis.Get(ctx, key).Result(); err == nil {
			if amount, err := strconv.ParseInt(cached, 10, 64); err == nil {
				return amount, nil
			}
		} else if err != redis.Nil {
			log.Printf("[CATALOG] Redis lookup failed for %s: %v", code, err)
		}
	}

	amount, ok := s.packages[code]
	if !ok {
		return 0, fmt.Errorf("invalid package code")
	}

	if s.redis != nil {
		key := fmt.Sprintf("pkg:amount:%s", code)
		if err := s.redis.Set(ctx, key, strconv.FormatInt(amount, 10), time.Hour).Err(); err != nil {
			log.Printf("[CATALOG] Redis cache set failed for %s: %v", code, err)
		}
	}

	return amount, nil
}
