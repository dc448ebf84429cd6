package verify

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"Verdict/internal/domain/models"
)

// Hash computes the deterministic verification hash over the documented field
// tuple. Prices are rendered at fixed 8-decimal precision so the digest never
// depends on float formatting quirks.
func Hash(symbol string, ts time.Time, oraclePrice, declaredPrice float64, verified bool, signal models.Signal) string {
	payload := symbol + "|" +
		strconv.FormatInt(ts.UTC().Unix(), 10) + "|" +
		fmt.Sprintf("%.8f", oraclePrice) + "|" +
		fmt.Sprintf("%.8f", declaredPrice) + "|" +
		strconv.FormatBool(verified) + "|" +
		string(signal)

	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
