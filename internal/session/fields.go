package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"transaction-automation-service/internal/extract"
	"transaction-automation-service/internal/models"
	apperrors "transaction-automation-service/pkg/errors"
)

// coerce converts a caller-supplied value into the canonical type stored in
// the change log. Unparseable amounts and dates become zero values so the
// validator reports them instead of the edit being rejected.
func coerce(field models.Field, value interface{}, now time.Time) (interface{}, error) {
	switch field {
	case models.FieldAmount:
		return toDecimal(value), nil
	case models.FieldBalance:
		if value == nil {
			return nil, nil
		}
		if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
			return nil, nil
		}
		return toDecimal(value), nil
	case models.FieldDate:
		return toTime(value, now), nil
	case models.FieldInstitution:
		switch v := value.(type) {
		case models.Institution:
			return v, nil
		default:
			return models.ParseInstitution(toString(value)), nil
		}
	case models.FieldDirection:
		if d, ok := value.(models.Direction); ok && d.IsValid() {
			return d, nil
		}
		d, err := models.ParseDirection(toString(value))
		if err != nil {
			return nil, apperrors.ValidationError(apperrors.CodeOutOfRange, string(field), value, err)
		}
		return d, nil
	case models.FieldMerchant, models.FieldReference, models.FieldCategory,
		models.FieldReason, models.FieldLocation:
		return extract.CleanField(toString(value)), nil
	}
	return nil, fmt.Errorf("field %q is not editable", field)
}

func toString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func toDecimal(value interface{}) decimal.Decimal {
	switch v := value.(type) {
	case decimal.Decimal:
		return v
	case *decimal.Decimal:
		if v != nil {
			return *v
		}
	case float64:
		return decimal.NewFromFloat(v)
	case float32:
		return decimal.NewFromFloat32(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case string:
		if d, err := extract.ParseAmount(v); err == nil {
			return d
		}
	}
	return decimal.Zero
}

func toTime(value interface{}, now time.Time) time.Time {
	switch v := value.(type) {
	case time.Time:
		return v
	case *time.Time:
		if v != nil {
			return *v
		}
	case string:
		if t, ok := extract.ResolveDate(v, now); ok {
			return t
		}
	}
	return time.Time{}
}

// fieldValue reads the current value of a field in its canonical type
func fieldValue(tx *models.Transaction, field models.Field) interface{} {
	switch field {
	case models.FieldAmount:
		return tx.Amount
	case models.FieldBalance:
		if tx.Balance == nil {
			return nil
		}
		return *tx.Balance
	case models.FieldDate:
		return tx.Timestamp
	case models.FieldInstitution:
		return tx.Institution
	case models.FieldDirection:
		return tx.Direction
	case models.FieldMerchant:
		return tx.Merchant
	case models.FieldReference:
		return tx.Reference
	case models.FieldCategory:
		return tx.Category
	case models.FieldReason:
		return tx.Reason
	case models.FieldLocation:
		return tx.Location
	case models.FieldConfidence:
		return tx.Confidence
	}
	return nil
}

// setField writes an already-coerced value onto tx
func setField(tx *models.Transaction, field models.Field, value interface{}) {
	switch field {
	case models.FieldAmount:
		tx.Amount = toDecimal(value)
	case models.FieldBalance:
		if value == nil {
			tx.Balance = nil
			return
		}
		balance := toDecimal(value)
		tx.Balance = &balance
	case models.FieldDate:
		if t, ok := value.(time.Time); ok {
			tx.Timestamp = t
		} else {
			tx.Timestamp = time.Time{}
		}
	case models.FieldInstitution:
		if inst, ok := value.(models.Institution); ok {
			tx.Institution = inst
		} else {
			tx.Institution = models.ParseInstitution(toString(value))
		}
	case models.FieldDirection:
		if d, ok := value.(models.Direction); ok {
			tx.Direction = d
		} else if d, err := models.ParseDirection(toString(value)); err == nil {
			tx.Direction = d
		}
	case models.FieldMerchant:
		tx.Merchant = toString(value)
	case models.FieldReference:
		tx.Reference = toString(value)
	case models.FieldCategory:
		tx.Category = toString(value)
	case models.FieldReason:
		tx.Reason = toString(value)
	case models.FieldLocation:
		tx.Location = toString(value)
	}
}
