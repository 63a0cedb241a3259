package payouts

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nnamdiosuji/okrika-backend/pkg/db/models"
	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
	pkgerrors "github.com/nnamdiosuji/okrika-backend/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// Typed descriptors for each payout method variant. Validation runs before
// any provider call so malformed destinations fail fast.

type bankTransferDescriptor struct {
	BankName      string `json:"bank_name" validate:"required"`
	AccountName   string `json:"account_name" validate:"required"`
	AccountNumber string `json:"account_number" validate:"required,numeric,min=10"`
	RoutingNumber string `json:"routing_number" validate:"required"`
}

type wireDescriptor struct {
	BankName      string `json:"bank_name" validate:"required"`
	AccountName   string `json:"account_name" validate:"required"`
	AccountNumber string `json:"account_number" validate:"required"`
	SwiftCode     string `json:"swift_code" validate:"required,alphanum,min=8,max=11"`
}

type paypalDescriptor struct {
	Email string `json:"paypal_email" validate:"required,email"`
}

type cryptoDescriptor struct {
	WalletAddress string `json:"wallet_address" validate:"required,min=20"`
	WalletNetwork string `json:"wallet_network" validate:"required"`
}

type escrowDescriptor struct {
	AccountID string `json:"escrow_account_id" validate:"required"`
}

// validateMethod checks the variant-specific required fields of a payout
// method.
func validateMethod(method *models.PayoutMethod) error {
	if method == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payout method required")
	}
	if !method.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unknown payout method type %q", method.Type))
	}

	var descriptor any
	switch method.Type {
	case enums.PayoutMethodTypeBankTransfer:
		descriptor = bankTransferDescriptor{
			BankName:      deref(method.BankName),
			AccountName:   deref(method.AccountName),
			AccountNumber: deref(method.AccountNumber),
			RoutingNumber: deref(method.RoutingNumber),
		}
	case enums.PayoutMethodTypeWire:
		descriptor = wireDescriptor{
			BankName:      deref(method.BankName),
			AccountName:   deref(method.AccountName),
			AccountNumber: deref(method.AccountNumber),
			SwiftCode:     deref(method.SwiftCode),
		}
	case enums.PayoutMethodTypePayPal:
		descriptor = paypalDescriptor{Email: deref(method.PayPalEmail)}
	case enums.PayoutMethodTypeCrypto:
		descriptor = cryptoDescriptor{
			WalletAddress: deref(method.WalletAddress),
			WalletNetwork: deref(method.WalletNetwork),
		}
	case enums.PayoutMethodTypeEscrow:
		descriptor = escrowDescriptor{AccountID: deref(method.EscrowAccountID)}
	}

	if err := validate.Struct(descriptor); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			details := map[string]string{}
			for _, fieldErr := range errs {
				details[fieldErr.Field()] = fieldErr.Tag()
			}
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("invalid %s payout method", method.Type)).WithDetails(details)
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payout method")
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
