package domain

import "time"

// PurchaseBreak exchanges balance for a break of the given length. The
// check runs against the committed balance and a rejection changes
// nothing. On success any in-flight work accrual is credited first, then
// the cost is debited and the session switches to Break.
func (s *Session) PurchaseBreak(minutes, minutesPerUnit int) error {
	if s.mode == ModeBreak {
		return ErrInvalidMode
	}
	cost, err := Rate{MinutesPerUnit: minutesPerUnit}.Cost(minutes)
	if err != nil {
		return err
	}
	if cost > s.ledger.Balance() {
		return ErrInsufficientBalance
	}

	now := s.clock.Now()
	s.reconcile(now)

	var earned Units
	var worked time.Duration
	if !s.finished {
		earned = s.accrual.Accrued()
		worked = s.accrual.Worked()
	}

	debit := cost
	if bal := s.ledger.Balance(); debit > bal {
		debit = bal
	}
	if err := s.ledger.Withdraw(debit); err != nil {
		return err
	}

	s.emit(Transition{
		Kind:      BreakPurchased,
		From:      ModeWork,
		To:        ModeBreak,
		At:        now,
		StartedAt: s.startedAt,
		Planned:   s.planned,
		Worked:    worked,
		Earned:    earned,
		Cost:      debit,
	})

	length := time.Duration(minutes) * time.Minute
	s.mode = ModeBreak
	s.finished = false
	s.countdown.Start(now, length)
	s.accrual.Reset(s.settings.SessionLength, s.settings.Rate())
	s.startedAt = now
	s.planned = length
	s.shopOpen = false
	s.shopResume = false
	s.sync(now)
	return nil
}
