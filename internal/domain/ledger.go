package domain

// Ledger is the banked reward balance. It lives for the whole run of the
// app and is never reset.
type Ledger struct {
	balance Units
}

func (l *Ledger) Balance() Units {
	return l.balance
}

func (l *Ledger) Deposit(amount Units) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	l.balance += amount
	return nil
}

// Withdraw debits an amount the caller has already checked is affordable.
func (l *Ledger) Withdraw(amount Units) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	if amount > l.balance {
		return ErrInsufficientBalance
	}
	l.balance -= amount
	return nil
}
