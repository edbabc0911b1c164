package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/revalytiq-client/session"
)

// User is the identity shape shared with the session store.
type User = session.User

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries a detail message in cookie mode; Access and Refresh are only
// filled by backends that return the pair in the body.
type LoginResponse struct {
	Detail  string `json:"detail,omitempty"`
	Access  string `json:"access,omitempty"`
	Refresh string `json:"refresh,omitempty"`
}

type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

// ForgotPasswordResponse exposes the reset token and uid when the backend runs in
// demo mode.
type ForgotPasswordResponse struct {
	Detail string `json:"detail"`
	Token  string `json:"token,omitempty"`
	UID    string `json:"uid,omitempty"`
}

type ResetPasswordRequest struct {
	Email        string `json:"email"`
	UID          string `json:"uid,omitempty"`
	Token        string `json:"token"`
	NewPassword  string `json:"new_password"`
	NewPassword2 string `json:"new_password2"`
}

type DetailResponse struct {
	Detail string `json:"detail"`
}

// ProfileUpdate is a partial update; nil fields are left out of the request.
type ProfileUpdate struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
}

// Amount is a monetary value the backend may encode as a number or a decimal string.
type Amount struct {
	raw string
}

func NewAmount(v float64) Amount {
	return Amount{raw: strconv.FormatFloat(v, 'f', -1, 64)}
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		a.raw = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		a.raw = strings.TrimSpace(s)
		return nil
	}
	a.raw = string(data)
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.raw)
}

// Float returns the numeric value, or 0 when the amount is not a finite number.
func (a Amount) Float() float64 {
	v, ok := a.Finite()
	if !ok {
		return 0
	}
	return v
}

// Finite returns the numeric value and whether it is a finite number.
func (a Amount) Finite() (float64, bool) {
	v, err := strconv.ParseFloat(a.raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func (a Amount) String() string {
	return a.raw
}

type Order struct {
	ID        int64  `json:"id"`
	Customer  string `json:"customer"`
	Amount    Amount `json:"amount"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// Created parses CreatedAt. Rows with a malformed timestamp still decode; they are
// only left out of date based aggregates.
func (o Order) Created() (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, o.CreatedAt)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// OrdersPayload accepts both a bare array and the paginated
// {count, next, previous, results} envelope.
type OrdersPayload struct {
	Count    int     `json:"count"`
	Next     *string `json:"next,omitempty"`
	Previous *string `json:"previous,omitempty"`
	Results  []Order `json:"results"`
}

func (p *OrdersPayload) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var orders []Order
		if err := json.Unmarshal(data, &orders); err != nil {
			return fmt.Errorf("orders: %w", err)
		}
		*p = OrdersPayload{Count: len(orders), Results: orders}
		return nil
	}

	type envelope OrdersPayload
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("orders: %w", err)
	}
	*p = OrdersPayload(env)
	return nil
}

// Rows returns the orders regardless of how they were encoded.
func (p *OrdersPayload) Rows() []Order {
	if p == nil {
		return nil
	}
	return p.Results
}

type KPISummary struct {
	Revenue float64 `json:"revenue"`
	Orders  int     `json:"orders"`
	AOV     float64 `json:"aov"`
}

// KPIRange narrows the KPI window. Zero bounds fall back to the backend default of
// the last 30 days.
type KPIRange struct {
	Start time.Time
	End   time.Time
}

const kpiDateLayout = "2006-01-02"
