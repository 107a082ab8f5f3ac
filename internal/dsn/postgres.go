// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import (
	"net"
	"net/url"
	"strings"
)

// parseURL tries the standard URL parser first and falls back to a manual
// split when the password carries unescaped reserved characters.
func parseURL(scheme Scheme, raw string) (*Info, error) {
	if parsed, err := url.Parse(raw); err == nil && parsed.Host != "" {
		return fromURL(scheme, parsed, raw)
	}
	_, remainder, _ := strings.Cut(raw, "://")
	return manualParse(scheme, remainder, raw)
}

func fromURL(scheme Scheme, parsed *url.URL, raw string) (*Info, error) {
	info := &Info{
		Scheme:   scheme,
		Host:     parsed.Hostname(),
		Port:     parsed.Port(),
		Database: strings.Trim(strings.TrimSpace(parsed.Path), "/"),
		Params:   map[string]string{},
		Original: raw,
	}
	if parsed.User != nil {
		info.User = parsed.User.Username()
		info.Password, _ = parsed.User.Password()
	}
	for key, values := range parsed.Query() {
		if len(values) > 0 {
			info.Params[key] = values[0]
		}
	}
	return finish(info, raw)
}

// manualParse handles [user[:password]@]host[:port][/database][?params].
// The last '@' separates credentials so passwords may contain '@'.
func manualParse(scheme Scheme, remainder, raw string) (*Info, error) {
	info := &Info{
		Scheme:   scheme,
		Params:   map[string]string{},
		Original: raw,
	}

	if at := strings.LastIndex(remainder, "@"); at >= 0 {
		auth := remainder[:at]
		remainder = remainder[at+1:]
		info.User, info.Password, _ = strings.Cut(auth, ":")
	}

	hostPart, rest, _ := strings.Cut(remainder, "/")
	rest, query, _ := strings.Cut(rest, "?")
	if strings.Contains(hostPart, "?") {
		hostPart, query, _ = strings.Cut(hostPart, "?")
	}
	info.Database = strings.Trim(strings.TrimSpace(rest), "/")

	if host, port, err := net.SplitHostPort(hostPart); err == nil {
		info.Host, info.Port = host, port
	} else {
		info.Host = hostPart
	}

	if query != "" {
		for _, param := range strings.Split(query, "&") {
			if k, v, ok := strings.Cut(param, "="); ok {
				info.Params[k] = v
			}
		}
	}
	return finish(info, raw)
}

func finish(info *Info, raw string) (*Info, error) {
	if info.Port == "" {
		info.Port = DefaultPort(info.Scheme)
	}
	if strings.TrimSpace(info.Host) == "" {
		return nil, newParseError(raw, "missing host", "format is presto://[user[:password]@]host[:port][/catalog]")
	}
	return info, nil
}

// ConnString renders info as a connection string with every component
// escaped: presto:// for the distributed engine, postgresql:// otherwise.
// Query parameters are emitted in key order.
func (i *Info) ConnString() string {
	scheme := "postgresql"
	if i.Scheme == SchemePresto {
		scheme = "presto"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(i.Host, i.Port),
		User:   userinfo(i.User, i.Password),
	}
	if i.Database != "" {
		u.Path = "/" + i.Database
	}
	if len(i.Params) > 0 {
		q := url.Values{}
		for k, v := range i.Params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// ServerURI renders the HTTP coordinator address of a presto URL. TLS is used
// when the URL sets SSL=true or carries a password, since the coordinator
// refuses password authentication over plain HTTP.
func (i *Info) ServerURI() string {
	scheme := "http"
	if strings.EqualFold(i.param("SSL"), "true") || i.Password != "" {
		scheme = "https"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(i.Host, i.Port),
		User:   userinfo(i.User, i.Password),
	}
	return u.String()
}

// param looks key up case-insensitively.
func (i *Info) param(key string) string {
	for k, v := range i.Params {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func userinfo(user, password string) *url.Userinfo {
	switch {
	case user != "" && password != "":
		return url.UserPassword(user, password)
	case user != "":
		return url.User(user)
	}
	return nil
}
