package coverage

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/aristath/wealth/internal/domain"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// OtherIssuer is the bucket for names no heuristic could classify.
const OtherIssuer = "Other"

// coveredTypes are the normalized instrument labels backed by deposit insurance.
var coveredTypes = map[string]bool{
	"cdb":           true,
	"rdb":           true,
	"lci":           true,
	"lca":           true,
	"lc":            true,
	"lh":            true,
	"lig":           true,
	"poupanca":      true,
	"contacorrente": true,
}

// banks maps the normalized token matched in a name to the issuer's display name.
var banks = map[string]string{
	"banco do brasil": "Banco do Brasil",
	"itau":            "Itaú",
	"bradesco":        "Bradesco",
	"santander":       "Santander",
	"caixa":           "Caixa",
	"btg":             "BTG Pactual",
	"btg pactual":     "BTG Pactual",
	"xp":              "XP",
	"inter":           "Inter",
	"nubank":          "Nubank",
	"c6":              "C6 Bank",
	"c6 bank":         "C6 Bank",
	"safra":           "Safra",
	"original":        "Original",
	"pan":             "Pan",
	"bmg":             "BMG",
	"daycoval":        "Daycoval",
	"sofisa":          "Sofisa",
	"pine":            "Pine",
	"abc brasil":      "ABC Brasil",
	"modal":           "Modal",
	"mercantil":       "Mercantil",
	"agibank":         "Agibank",
	"banrisul":        "Banrisul",
	"sicredi":         "Sicredi",
	"sicoob":          "Sicoob",
	"bs2":             "BS2",
	"votorantim":      "BV",
	"bv":              "BV",
	"master":          "Master",
}

// bankPattern matches the longest bank token first.
var bankPattern = regexp.MustCompile(`\b(banco do brasil|btg pactual|c6 bank|abc brasil|` +
	`itau|bradesco|santander|caixa|btg|xp|inter|nubank|c6|safra|original|pan|bmg|daycoval|` +
	`sofisa|pine|modal|mercantil|agibank|banrisul|sicredi|sicoob|bs2|votorantim|bv|master)\b`)

// separators split "instrument <sep> issuer" names, tried in order.
var separators = []string{" \u2014 ", " \u2013 ", " - ", "|", "/"}

// fold lowercases s and removes diacritics.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// issuerKey identifies an issuer regardless of case, accents and spacing.
func issuerKey(issuer string) string {
	return strings.Join(strings.Fields(fold(issuer)), " ")
}

// normalizeType folds a type label and drops everything but letters and digits,
// so "Conta Corrente" and "conta-corrente" both become "contacorrente".
func normalizeType(s string) string {
	var b strings.Builder
	for _, r := range fold(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsCovered reports whether an instrument type is backed by deposit insurance.
func IsCovered(t domain.InstrumentType) bool {
	return coveredTypes[normalizeType(string(t))]
}

// ExtractIssuer guesses the issuer from a free-text asset name: a known bank
// token anywhere in the name, else the text after the first separator, else
// OtherIssuer.
func ExtractIssuer(name string) string {
	if m := bankPattern.FindString(fold(name)); m != "" {
		return banks[m]
	}

	for _, sep := range separators {
		if i := strings.Index(name, sep); i >= 0 {
			if issuer := strings.Fields(name[i+len(sep):]); len(issuer) > 0 {
				return strings.Join(issuer, " ")
			}
		}
	}
	return OtherIssuer
}
