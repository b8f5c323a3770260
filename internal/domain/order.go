package domain

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusUnder    OrderStatus = "under"
	StatusTodo     OrderStatus = "todo"
	StatusDelivery OrderStatus = "delivery"
	StatusEnd      OrderStatus = "end"
)

type PaymentMethod string

const (
	PaymentCash        PaymentMethod = "cash"
	PaymentNoncash     PaymentMethod = "noncash"
	PaymentUnspecified PaymentMethod = "unspecified"
)

type Order struct {
	ID            int64         `json:"id"`
	Firstname     string        `json:"firstname"`
	Lastname      string        `json:"lastname"`
	Phonenumber   string        `json:"phonenumber"`
	Address       string        `json:"address"`
	Comments      string        `json:"comments,omitempty"`
	Status        OrderStatus   `json:"status"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	RegisteredAt  time.Time     `json:"registered_at"`
	CalledAt      *time.Time    `json:"called_at,omitempty"`
	DeliveredAt   *time.Time    `json:"delivered_at,omitempty"`
	RestaurantID  *int64        `json:"restaurant_id,omitempty"`
	Items         []OrderItem   `json:"products"`
}

type OrderItem struct {
	ProductID int64               `json:"product_id"`
	Quantity  int                 `json:"quantity"`
	Price     decimal.NullDecimal `json:"price"`
}

// OrderInput is a customer submission as it arrives from the HTTP API or Kafka.
type OrderInput struct {
	Firstname   string      `json:"firstname" validate:"notblank,max=50"`
	Lastname    string      `json:"lastname" validate:"notblank,max=50"`
	Phonenumber string      `json:"phonenumber" validate:"required,e164"`
	Address     string      `json:"address" validate:"notblank,max=200"`
	Comments    string      `json:"comments,omitempty" validate:"max=200"`
	Products    []ItemInput `json:"products" validate:"required,min=1,dive"`
}

type ItemInput struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	// order_items.quantity is an INTEGER; anything past the cap never reaches pgx.
	Quantity int `json:"quantity" validate:"required,min=1,max=1000"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// Validate checks the submission shape. Product existence is checked on insert.
func (in OrderInput) Validate() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Namespace()+": "+fe.Tag())
	}
	return &ValidationError{Fields: fields}
}
