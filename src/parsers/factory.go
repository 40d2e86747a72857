package parsers

import (
	"fmt"
)

// parserConstructors maps statement sources to parser constructors. Declared
// as a table so registering a new broker format is a one-line change.
var parserConstructors = map[string]func() Parser{}

// RegisterParser installs a constructor for a statement source. Called from
// the broker packages' init functions.
func RegisterParser(source string, constructor func() Parser) {
	parserConstructors[source] = constructor
}

func GetParser(source string) (Parser, error) {
	constructor, ok := parserConstructors[source]
	if !ok {
		return nil, fmt.Errorf("no parser available for source: %s", source)
	}
	return constructor(), nil
}
