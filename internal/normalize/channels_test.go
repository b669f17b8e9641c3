package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapChannelsPaystack(t *testing.T) {
	m := NewChannelMapper()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "direct mappings",
			in:   []string{ChannelCard, ChannelBankTransfer, ChannelUSSD},
			want: []string{"card", "bank_transfer", "ussd"},
		},
		{
			name: "renamed tokens",
			in:   []string{ChannelQRCode, ChannelBankAccount, ChannelDigitalWallet},
			want: []string{"qr", "bank", "apple_pay"},
		},
		{
			name: "rejected channel removed",
			in:   []string{ChannelCard, ChannelPayPal},
			want: []string{"card"},
		},
		{
			name: "unknown token filtered by valid set",
			in:   []string{"telepathy", ChannelCard},
			want: []string{"card"},
		},
		{
			name: "provider-native token passes through",
			in:   []string{"eft"},
			want: []string{"eft"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.MapChannels(tt.in, "paystack"))
		})
	}
}

func TestMapChannelsStripe(t *testing.T) {
	m := NewChannelMapper()

	got := m.MapChannels([]string{ChannelCard, ChannelBankTransfer, ChannelBankAccount, ChannelDigitalWallet, ChannelPayPal}, "stripe")
	assert.Equal(t, []string{"card", "customer_balance", "us_bank_account", "link", "paypal"}, got)

	// African channels have no Stripe equivalent and are rejected outright.
	assert.Empty(t, m.MapChannels([]string{ChannelUSSD, ChannelMobileMoney, ChannelQRCode}, "stripe"))
}

func TestMapChannelsUnknownProviderPassesThrough(t *testing.T) {
	m := NewChannelMapper()

	in := []string{ChannelCard, "anything"}
	assert.Equal(t, in, m.MapChannels(in, "flutterwave"))
}

func TestMapFromProvider(t *testing.T) {
	m := NewChannelMapper()

	tests := []struct {
		token    string
		provider string
		want     string
		ok       bool
	}{
		{"qr", "paystack", ChannelQRCode, true},
		{"bank", "paystack", ChannelBankAccount, true},
		{"eft", "paystack", ChannelBankTransfer, true},
		{"us_bank_account", "stripe", ChannelBankAccount, true},
		{"link", "stripe", ChannelDigitalWallet, true},
		// Unified tokens resolve case-insensitively even without a table hit.
		{"CARD", "flutterwave", ChannelCard, true},
		{"Mobile_Money", "", ChannelMobileMoney, true},
		{"carrier_pigeon", "paystack", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.provider+"/"+tt.token, func(t *testing.T) {
			got, ok := m.MapFromProvider(tt.token, tt.provider)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSupportsChannels(t *testing.T) {
	m := NewChannelMapper()

	assert.True(t, m.SupportsChannels("paystack"))
	assert.True(t, m.SupportsChannels("Stripe"))
	assert.False(t, m.SupportsChannels("paypal"))
	assert.False(t, m.SupportsChannels(""))
}
