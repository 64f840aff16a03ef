package models

import (
	"errors"
	"strings"
)

// AccountType tags who owns a credit balance.
type AccountType string

const (
	AccountPersonal AccountType = "personal"
	AccountBusiness AccountType = "business"
)

var ErrInvalidAccount = errors.New("invalid account")

// Account identifies a credit balance owner. Personal accounts belong to a
// user, business accounts to an organization; both share one ledger keyed by
// ID so feature code never branches on the type.
type Account struct {
	ID   string      `json:"accountId"`
	Type AccountType `json:"accountType"`
}

// NewAccount derives the ledger account for an owner. The prefix keeps user
// and organization ids from colliding.
func NewAccount(accountType AccountType, ownerID string) (Account, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return Account{}, ErrInvalidAccount
	}

	switch accountType {
	case AccountPersonal, "":
		return Account{ID: "usr_" + ownerID, Type: AccountPersonal}, nil
	case AccountBusiness:
		return Account{ID: "org_" + ownerID, Type: AccountBusiness}, nil
	default:
		return Account{}, ErrInvalidAccount
	}
}
