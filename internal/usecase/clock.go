package usecase

import "time"

type nowFunc func() time.Time

func (f nowFunc) orNow() time.Time {
	if f == nil {
		return time.Now()
	}
	return f()
}

func (uc *SubmitVote) clock() time.Time {
	return uc.now.orNow()
}
