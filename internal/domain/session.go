package domain

import "time"

// AdminSession is an authenticated admin login. It is created on login and
// stops being valid on logout or at ExpiresAt.
type AdminSession struct {
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s *AdminSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
