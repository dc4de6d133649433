package plan

import (
	"log/slog"
	"strings"
)

// ParseProtocols applies a comma separated list of protocol directives to
// the default allow-list {http, https}. Each token may start with an
// operator: '=' allows exactly the named protocol, '+' enables it, '-'
// disables it; no operator means '+'. The name "all" covers both
// protocols. Directives apply left to right, so later ones win.
// Unrecognized tokens are reported on logger and otherwise ignored.
func ParseProtocols(directives string, logger *slog.Logger) Protocols {
	p := Protocols{HTTP: true, HTTPS: true}

	for _, token := range strings.Split(directives, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		op := byte('+')
		name := token
		switch token[0] {
		case '=', '+', '-':
			op, name = token[0], token[1:]
		default:
			if !isLetter(token[0]) {
				logger.Warn("unrecognized protocol operator", "token", token)
				continue
			}
		}

		var useHTTP, useHTTPS bool
		switch strings.ToLower(name) {
		case "http":
			useHTTP = true
		case "https":
			useHTTPS = true
		case "all":
			useHTTP, useHTTPS = true, true
		default:
			logger.Warn("unrecognized protocol", "token", token)
			continue
		}

		switch op {
		case '=':
			p = Protocols{HTTP: useHTTP, HTTPS: useHTTPS}
		case '+':
			p.HTTP = p.HTTP || useHTTP
			p.HTTPS = p.HTTPS || useHTTPS
		case '-':
			p.HTTP = p.HTTP && !useHTTP
			p.HTTPS = p.HTTPS && !useHTTPS
		}
	}

	return p
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
