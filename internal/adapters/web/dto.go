package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"

	"finledger/internal/app"
	"finledger/internal/core"
)

// newValidator registers the custom tags used by the request bodies below.
func newValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := validate.RegisterValidation("decimal", func(fl validator.FieldLevel) bool {
		_, err := decimal.NewFromString(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(fmt.Sprintf("failed to register decimal validation: %v", err))
	}
	if err := validate.RegisterValidation("day", func(fl validator.FieldLevel) bool {
		_, err := core.ParseDate(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(fmt.Sprintf("failed to register day validation: %v", err))
	}
	return validate
}

// decodeJSON decodes the request body into v and validates it. It writes the error
// response and returns false on failure: 413 when the body exceeds the limit set by
// RequestBodyLimit, 400 for malformed JSON, 422 for failed validation.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large", Code: "REQUEST_TOO_LARGE"})
			return false
		}
		writeError(w, r, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error(), Code: "BAD_REQUEST"})
		return false
	}

	if err := h.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeError(w, r, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "BAD_REQUEST"})
			return false
		}
		resp := errorResponse{Error: "request validation failed", Code: string(core.CodeInvalidRequest)}
		for _, fe := range verrs {
			resp.Details = append(resp.Details, errorDetail{
				Code:    string(core.CodeInvalidRequest),
				Field:   fe.Namespace(),
				Message: fmt.Sprintf("failed %q validation", fe.Tag()),
			})
		}
		writeError(w, r, http.StatusUnprocessableEntity, resp)
		return false
	}
	return true
}

// ── Request bodies ────────────────────────────────────────────────────────────

type createAccountBody struct {
	Code        string `json:"code" validate:"required,max=20"`
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY INCOME EXPENSE asset liability equity income expense"`
	Subtype     string `json:"subtype,omitempty"`
	ParentCode  string `json:"parent_code,omitempty"`
	IsParent    bool   `json:"is_parent,omitempty"`
	IsContra    bool   `json:"is_contra,omitempty"`
}

func (b createAccountBody) toApp() app.CreateAccountRequest {
	return app.CreateAccountRequest{
		Code:        b.Code,
		Name:        b.Name,
		Description: b.Description,
		Type:        b.Type,
		Subtype:     b.Subtype,
		ParentCode:  b.ParentCode,
		IsParent:    b.IsParent,
		IsContra:    b.IsContra,
	}
}

type updateAccountBody struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

type seedBody struct {
	Accounts []core.SeedAccount `json:"accounts,omitempty"`
}

// postEntryBody is the JSON body of POST /journal/entries. Amounts are decimal
// strings with at most two decimal places.
type postEntryBody struct {
	Date           string         `json:"date" validate:"required,day" jsonschema:"format=date,description=Entry date YYYY-MM-DD"`
	Memo           string         `json:"memo" validate:"max=500"`
	SourceType     string         `json:"source_type" validate:"required" jsonschema:"enum=EXPENSE,enum=INCOME,enum=CHEQUE,enum=DEPOSIT,enum=TRANSFER,enum=INVOICE,enum=PURCHASE"`
	SourceID       string         `json:"source_id,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty" validate:"max=128"`
	Lines          []postLineBody `json:"lines" validate:"required,min=2,dive" jsonschema:"minItems=2"`
}

type postLineBody struct {
	AccountCode string `json:"account_code" validate:"required"`
	Debit       string `json:"debit,omitempty" validate:"omitempty,decimal" jsonschema:"pattern=^[0-9]+(\\.[0-9][0-9]?)?$"`
	Credit      string `json:"credit,omitempty" validate:"omitempty,decimal" jsonschema:"pattern=^[0-9]+(\\.[0-9][0-9]?)?$"`
	Memo        string `json:"memo,omitempty"`
}

func (b postEntryBody) toApp() app.PostEntryRequest {
	req := app.PostEntryRequest{
		Date:           b.Date,
		Memo:           b.Memo,
		SourceType:     b.SourceType,
		SourceID:       b.SourceID,
		IdempotencyKey: b.IdempotencyKey,
		Lines:          make([]app.PostLineInput, len(b.Lines)),
	}
	for i, l := range b.Lines {
		req.Lines[i] = app.PostLineInput{AccountCode: l.AccountCode, Debit: l.Debit, Credit: l.Credit, Memo: l.Memo}
	}
	return req
}

type templateBody struct {
	SourceType     string `json:"source_type" validate:"required"`
	Category       string `json:"category,omitempty"`
	Date           string `json:"date" validate:"required,day"`
	Memo           string `json:"memo,omitempty"`
	SourceID       string `json:"source_id,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty" validate:"max=128"`
	Amount         string `json:"amount" validate:"required,decimal"`
	Tax            string `json:"tax,omitempty" validate:"omitempty,decimal"`
	Fee            string `json:"fee,omitempty" validate:"omitempty,decimal"`
	DebitAccount   string `json:"debit_account,omitempty"`
	CreditAccount  string `json:"credit_account,omitempty"`
}

func (b templateBody) toApp() app.TemplateEntryRequest {
	return app.TemplateEntryRequest{
		SourceType:     b.SourceType,
		Category:       b.Category,
		Date:           b.Date,
		Memo:           b.Memo,
		SourceID:       b.SourceID,
		IdempotencyKey: b.IdempotencyKey,
		Amount:         b.Amount,
		Tax:            b.Tax,
		Fee:            b.Fee,
		DebitAccount:   b.DebitAccount,
		CreditAccount:  b.CreditAccount,
	}
}

type reverseBody struct {
	Date string `json:"date,omitempty" validate:"omitempty,day"`
	Memo string `json:"memo,omitempty" validate:"max=500"`
}

type registerItemBody struct {
	SKU          string `json:"sku" validate:"required,max=64"`
	Name         string `json:"name" validate:"required,max=200"`
	Category     string `json:"category,omitempty"`
	SellingPrice string `json:"selling_price,omitempty" validate:"omitempty,decimal"`
}

type movementBody struct {
	ItemID             int64  `json:"item_id" validate:"required,gt=0"`
	Type               string `json:"type" validate:"required,oneof=IN OUT ADJUSTMENT"`
	Reason             string `json:"reason,omitempty"`
	Quantity           string `json:"quantity" validate:"required,decimal"`
	UnitCost           string `json:"unit_cost,omitempty" validate:"omitempty,decimal"`
	Date               string `json:"date" validate:"required,day"`
	Notes              string `json:"notes,omitempty"`
	IdempotencyKey     string `json:"idempotency_key,omitempty" validate:"max=128"`
	CounterAccountCode string `json:"counter_account_code,omitempty"`
}

func (b movementBody) toApp() app.MovementRequest {
	return app.MovementRequest{
		ItemID:             b.ItemID,
		Type:               b.Type,
		Reason:             b.Reason,
		Quantity:           b.Quantity,
		UnitCost:           b.UnitCost,
		Date:               b.Date,
		Notes:              b.Notes,
		IdempotencyKey:     b.IdempotencyKey,
		CounterAccountCode: b.CounterAccountCode,
	}
}

// postEntrySchema is the JSON Schema of postEntryBody, served to clients that
// build entry forms.
func postEntrySchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(&postEntryBody{})
}
