package model

import (
	"fmt"

	"github.com/dissonance-oracle/oracle/internal/oracleerr"
)

func errMissingField(field string) error {
	return oracleerr.New(oracleerr.KindInvalidInput, fmt.Sprintf("missing required field: %s", field))
}

func errInvalidMode(mode Mode) error {
	return oracleerr.New(oracleerr.KindInvalidInput, fmt.Sprintf("invalid mode: %q", mode))
}
