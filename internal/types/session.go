package types

import "time"

// Millis is a unix timestamp in milliseconds, the unit the server uses on the wire.
type Millis int64

func (m Millis) Time() time.Time {
	if m <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(m)).UTC()
}

func MillisFromTime(t time.Time) Millis {
	if t.IsZero() {
		return 0
	}
	return Millis(t.UnixMilli())
}

type SessionTime struct {
	Created Millis `json:"created"`
	Updated Millis `json:"updated"`
}

type SessionShare struct {
	URL string `json:"url"`
}

type Session struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Directory string        `json:"directory,omitempty"`
	ParentID  string        `json:"parentID,omitempty"`
	Version   string        `json:"version,omitempty"`
	Time      SessionTime   `json:"time"`
	Share     *SessionShare `json:"share,omitempty"`
}

func (s *Session) CreatedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.Time.Created.Time()
}

func (s *Session) UpdatedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.Time.Updated.Time()
}

// ShareURL returns the public share link, or "" when the session is not shared.
func (s *Session) ShareURL() string {
	if s == nil || s.Share == nil {
		return ""
	}
	return s.Share.URL
}

func CloneSession(s *Session) *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Share != nil {
		share := *s.Share
		out.Share = &share
	}
	return &out
}
