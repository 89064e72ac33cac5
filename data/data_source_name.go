package data

import (
	"net/url"
	"regexp"
	"strings"
)

const PostgresScheme = "postgres"

var keyValueDSN = regexp.MustCompile(
	`(?i)^(user=\S+|password=\S+|host=\S+|port=\d+|dbname=\S+|sslmode=\S+)(\s+\S+=\S+)*$`,
)

// A DSN for conveniently handling a URI connection string.
type DSN string

// ToArray splits a comma separated list of connection strings.
func (d DSN) ToArray() []DSN {
	var connectionDSList []DSN
	for _, connectionURI := range strings.Split(string(d), ",") {
		dataSourceURI := DSN(strings.TrimSpace(connectionURI))
		if len(dataSourceURI) > 0 {
			connectionDSList = append(connectionDSList, dataSourceURI)
		}
	}

	return connectionDSList
}

func (d DSN) IsPostgres() bool {
	u, err := url.Parse(string(d))
	if err == nil && (u.Scheme == PostgresScheme || u.Scheme == "postgresql") {
		return true
	}

	return keyValueDSN.MatchString(string(d))
}

func (d DSN) ToURI() (*url.URL, error) {
	return url.Parse(string(d))
}

func (d DSN) String() string {
	return string(d)
}
