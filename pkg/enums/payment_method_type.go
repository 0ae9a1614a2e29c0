package enums

// PaymentMethodType mirrors the processor's payment method categories we persist.
type PaymentMethodType string

const (
	PaymentMethodTypeCard          PaymentMethodType = "card"
	PaymentMethodTypeLink          PaymentMethodType = "link"
	PaymentMethodTypeUSBankAccount PaymentMethodType = "us_bank_account"
	PaymentMethodTypeOther         PaymentMethodType = "other"
)

// NormalizePaymentMethodType folds unknown processor types into PaymentMethodTypeOther.
func NormalizePaymentMethodType(value string) PaymentMethodType {
	switch PaymentMethodType(value) {
	case PaymentMethodTypeCard, PaymentMethodTypeLink, PaymentMethodTypeUSBankAccount:
		return PaymentMethodType(value)
	default:
		return PaymentMethodTypeOther
	}
}
