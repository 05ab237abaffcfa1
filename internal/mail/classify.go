package mail

import (
	"errors"
	"io"
	"net"
	"net/textproto"
)

// Kind groups delivery failures the way they are reported to users.
type Kind int

const (
	KindOther Kind = iota
	KindSocket
	KindSMTP
)

func (k Kind) String() string {
	switch k {
	case KindSocket:
		return "socket"
	case KindSMTP:
		return "smtp"
	default:
		return "other"
	}
}

// Classify reports whether err came from the network, from the mail server
// or from somewhere else.
func Classify(err error) Kind {
	if err == nil {
		return KindOther
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindSocket
	}

	var protoErr *textproto.Error
	var smtpErr *SMTPError
	var providerErr *ProviderError
	switch {
	case errors.As(err, &protoErr), errors.As(err, &smtpErr), errors.As(err, &providerErr):
		return KindSMTP
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		// server dropped the connection mid-conversation
		return KindSMTP
	}
	return KindOther
}
