package normalize

import "strings"

// Unified payment channel vocabulary.
const (
	ChannelCard          = "card"
	ChannelBankTransfer  = "bank_transfer"
	ChannelUSSD          = "ussd"
	ChannelMobileMoney   = "mobile_money"
	ChannelQRCode        = "qr_code"
	ChannelBankAccount   = "bank_account"
	ChannelDigitalWallet = "digital_wallet"
	ChannelPayPal        = "paypal"
)

var unifiedChannels = []string{
	ChannelCard, ChannelBankTransfer, ChannelUSSD, ChannelMobileMoney,
	ChannelQRCode, ChannelBankAccount, ChannelDigitalWallet, ChannelPayPal,
}

// providerChannelTable holds one provider's channel vocabulary: the forward
// map from unified channels, the reverse map back, the set of tokens the
// provider actually accepts, and an optional reject list of unified channels
// the provider refuses outright.
type providerChannelTable struct {
	toProvider   map[string]string
	fromProvider map[string]string
	valid        map[string]bool
	reject       map[string]bool
}

var channelTables = map[string]providerChannelTable{
	"paystack": {
		toProvider: map[string]string{
			ChannelCard:          "card",
			ChannelBankTransfer:  "bank_transfer",
			ChannelUSSD:          "ussd",
			ChannelMobileMoney:   "mobile_money",
			ChannelQRCode:        "qr",
			ChannelBankAccount:   "bank",
			ChannelDigitalWallet: "apple_pay",
		},
		fromProvider: map[string]string{
			"card":          ChannelCard,
			"bank_transfer": ChannelBankTransfer,
			"ussd":          ChannelUSSD,
			"mobile_money":  ChannelMobileMoney,
			"qr":            ChannelQRCode,
			"bank":          ChannelBankAccount,
			"apple_pay":     ChannelDigitalWallet,
			"eft":           ChannelBankTransfer,
		},
		valid: map[string]bool{
			"card": true, "bank_transfer": true, "ussd": true,
			"mobile_money": true, "qr": true, "bank": true,
			"apple_pay": true, "eft": true,
		},
		reject: map[string]bool{
			ChannelPayPal: true,
		},
	},
	"stripe": {
		toProvider: map[string]string{
			ChannelCard:          "card",
			ChannelBankTransfer:  "customer_balance",
			ChannelBankAccount:   "us_bank_account",
			ChannelDigitalWallet: "link",
			ChannelPayPal:        "paypal",
		},
		fromProvider: map[string]string{
			"card":             ChannelCard,
			"customer_balance": ChannelBankTransfer,
			"us_bank_account":  ChannelBankAccount,
			"link":             ChannelDigitalWallet,
			"paypal":           ChannelPayPal,
		},
		valid: map[string]bool{
			"card": true, "customer_balance": true, "us_bank_account": true,
			"link": true, "paypal": true,
		},
		reject: map[string]bool{
			ChannelUSSD:        true,
			ChannelMobileMoney: true,
			ChannelQRCode:      true,
		},
	},
}

// providersWithChannels is the allow-list for channel selection. PayPal has no
// channel-selection concept in this model and is deliberately absent.
var providersWithChannels = map[string]bool{
	"paystack": true,
	"stripe":   true,
}

// ChannelMapper translates between the unified channel vocabulary and each
// provider's channel tokens. The tables are static, so the zero value is
// usable and the mapper is safe for concurrent use.
type ChannelMapper struct{}

func NewChannelMapper() *ChannelMapper {
	return &ChannelMapper{}
}

// MapChannels translates unified channels into provider tokens. Unknown
// unified values pass through unchanged unless the provider rejects them, and
// the output is filtered against the provider's known-valid token set so an
// unrecognized result is removed rather than forwarded.
func (m *ChannelMapper) MapChannels(channels []string, provider string) []string {
	table, ok := channelTables[strings.ToLower(provider)]
	if !ok {
		out := make([]string, len(channels))
		copy(out, channels)
		return out
	}

	out := make([]string, 0, len(channels))
	for _, ch := range channels {
		if table.reject[ch] {
			continue
		}
		mapped, found := table.toProvider[ch]
		if !found {
			mapped = ch
		}
		if !table.valid[mapped] {
			continue
		}
		out = append(out, mapped)
	}
	return out
}

// MapFromProvider reverses a provider channel token back into the unified
// vocabulary, falling back to a case-insensitive scan of the unified enum
// when no explicit reverse mapping exists. The second return is false when
// the token cannot be resolved.
func (m *ChannelMapper) MapFromProvider(token, provider string) (string, bool) {
	table, ok := channelTables[strings.ToLower(provider)]
	if ok {
		if unified, found := table.fromProvider[strings.ToLower(token)]; found {
			return unified, true
		}
	}
	for _, unified := range unifiedChannels {
		if strings.EqualFold(unified, token) {
			return unified, true
		}
	}
	return "", false
}

// SupportsChannels reports whether the provider accepts a channel list on a
// charge. PayPal always returns false.
func (m *ChannelMapper) SupportsChannels(provider string) bool {
	return providersWithChannels[strings.ToLower(provider)]
}
