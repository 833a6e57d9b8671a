/*
users.go - User provisioning

PURPOSE:
  Creating a user synchronously provisions exactly one Account (balance zero)
  and one Profile within the same transaction. The original system did this
  with implicit post-save signals; here it is one explicit atomic step.

REFERENTIAL INTEGRITY:
  Accounts are never deleted, and deleting a user is blocked while its
  account exists - which in practice means user rows are permanent once
  provisioned.
*/
package bank

import (
	"context"
	"time"
)

// CreateUser creates the user and provisions its account and profile in one
// atomic commit. Either all three rows exist afterwards or none do.
func (l *Ledger) CreateUser(ctx context.Context, username, firstName, lastName string) (*User, *Account, *Profile, error) {
	var (
		user    User
		account Account
		profile Profile
	)

	err := l.store.WithTx(ctx, func(s Store) error {
		user = User{
			ID:        NewUserID(),
			Username:  username,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.CreateUser(ctx, user); err != nil {
			return err
		}

		account = Account{
			ID:      NewAccountID(),
			UserID:  user.ID,
			Balance: ZeroMoney(),
		}
		if err := s.CreateAccount(ctx, account); err != nil {
			return err
		}

		profile = Profile{
			ID:        NewProfileID(),
			UserID:    user.ID,
			FirstName: firstName,
			LastName:  lastName,
		}
		return s.CreateProfile(ctx, profile)
	})
	if err != nil {
		return nil, nil, nil, err
	}

	return &user, &account, &profile, nil
}

// DeleteUser removes a user row. It fails with ErrUserHasAccount while the
// user owns an account, which protects the ledger's referential integrity.
func (l *Ledger) DeleteUser(ctx context.Context, id UserID) error {
	return l.store.WithTx(ctx, func(s Store) error {
		u, err := s.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if u == nil {
			return ErrUserNotFound
		}
		return s.DeleteUser(ctx, id)
	})
}
