package marketdata

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	apperrors "optionlab/internal/errors"
	"optionlab/internal/models"
)

// Contract is a parsed OCC option symbol.
type Contract struct {
	Symbol     string
	Expiration time.Time
	Kind       models.OptionKind
	Strike     float64
}

// ContractID builds the OCC symbol: root, YYMMDD expiry, C or P, and the
// strike times 1000 as eight digits. AAPL 2024-06-21 call 150 is
// AAPL240621C00150000.
func ContractID(symbol string, expiration time.Time, kind models.OptionKind, strike float64) string {
	cp := "C"
	if kind == models.Put {
		cp = "P"
	}
	return fmt.Sprintf("%s%s%s%08d",
		strings.ToUpper(strings.TrimSpace(symbol)),
		expiration.Format("060102"),
		cp,
		int64(math.Round(strike*1000)))
}

// ID returns the contract's OCC symbol.
func (c Contract) ID() string {
	return ContractID(c.Symbol, c.Expiration, c.Kind, c.Strike)
}

// ParseContractID parses an OCC symbol produced by ContractID.
func ParseContractID(id string) (Contract, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	// root (1-6) + 6 date + 1 kind + 8 strike
	if len(id) < 16 || len(id) > 21 {
		return Contract{}, apperrors.NewValidationError("contract", id, "not an OCC option symbol")
	}
	n := len(id)
	root, date, cp, strike := id[:n-15], id[n-15:n-9], id[n-9], id[n-8:]

	exp, err := time.Parse("060102", date)
	if err != nil {
		return Contract{}, apperrors.NewValidationError("contract", id, "bad expiration date")
	}

	var kind models.OptionKind
	switch cp {
	case 'C':
		kind = models.Call
	case 'P':
		kind = models.Put
	default:
		return Contract{}, apperrors.NewValidationError("contract", id, "kind must be C or P")
	}

	milli, err := strconv.ParseInt(strike, 10, 64)
	if err != nil {
		return Contract{}, apperrors.NewValidationError("contract", id, "bad strike")
	}

	return Contract{
		Symbol:     strings.TrimSpace(root),
		Expiration: exp,
		Kind:       kind,
		Strike:     float64(milli) / 1000,
	}, nil
}
