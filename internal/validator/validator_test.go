package validator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lexara-six/ingestion/internal/validator"
)

func TestValidateNameEmpty(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"name is empty"}, validator.ValidateName("   "))
}

func TestValidateNameTooLong(t *testing.T) {
	t.Parallel()
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'a'
	}
	errs := validator.ValidateName(string(long))
	assert.Len(t, errs, 1)
	assert.Contains(t, errs[0], "too long")
}

func TestValidateNameOnlySpecialChars(t *testing.T) {
	t.Parallel()
	errs := validator.ValidateName("!!! ---")
	assert.Contains(t, errs, "name contains only special characters")
}

func TestValidateNameValid(t *testing.T) {
	t.Parallel()
	assert.Empty(t, validator.ValidateName("Acme Corp"))
}

func TestValidateDateEmptyIsValid(t *testing.T) {
	t.Parallel()
	assert.Empty(t, validator.ValidateDate("", "effective_date"))
}

func TestValidateDateFormats(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"2020-01-15", "01/15/2020", "15/01/2020", "20200115"} {
		assert.Empty(t, validator.ValidateDate(s, "effective_date"), "expected %q to parse", s)
	}
}

func TestValidateDateInvalidFormat(t *testing.T) {
	t.Parallel()
	errs := validator.ValidateDate("not-a-date", "effective_date")
	assert.Len(t, errs, 1)
	assert.Contains(t, errs[0], "invalid format")
}

func TestValidateDateYearOutOfRange(t *testing.T) {
	t.Parallel()
	errs := validator.ValidateDate("1750-01-01", "effective_date")
	assert.Len(t, errs, 1)
	assert.Contains(t, errs[0], "unreasonable year")
}

func TestValidateAddress(t *testing.T) {
	t.Parallel()
	errs := validator.ValidateAddress(validator.Address{City: "Des Moines", State: "IA", Zip: "50309"})
	assert.Empty(t, errs)
}

func TestValidateAddressBadZip(t *testing.T) {
	t.Parallel()
	errs := validator.ValidateAddress(validator.Address{Zip: "abcde"})
	assert.Len(t, errs, 1)
	assert.Contains(t, errs[0], "invalid zip")
}

func TestValidateAddressZipPlusFour(t *testing.T) {
	t.Parallel()
	assert.Empty(t, validator.ValidateAddress(validator.Address{Zip: "50309-1234"}))
}

func TestValidateCoordinatesValid(t *testing.T) {
	t.Parallel()
	assert.Empty(t, validator.ValidateCoordinates([]float64{-93.6, 41.6}))
}

func TestValidateCoordinatesOutOfRange(t *testing.T) {
	t.Parallel()
	errs := validator.ValidateCoordinates([]float64{-200, 100})
	assert.Len(t, errs, 2)
}

func TestValidateCoordinatesWrongLength(t *testing.T) {
	t.Parallel()
	errs := validator.ValidateCoordinates([]float64{1.0})
	assert.Len(t, errs, 1)
	assert.Contains(t, errs[0], "must have 2 values")
}

func TestValidateCoordinatesEmpty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, validator.ValidateCoordinates(nil))
}

func TestSanitize(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "hello", validator.Sanitize("  hello\x00  ", 100))
}

func TestSanitizeTruncates(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "hel", validator.Sanitize("hello", 3))
}

func TestSanitizeEmpty(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", validator.Sanitize("", 10))
}
