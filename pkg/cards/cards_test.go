package cards

import "testing"

func TestCardTypeFrequency(t *testing.T) {
	tests := []struct {
		cardType CardType
		want     Frequency
	}{
		{EM4100, LF},
		{HIDProx, LF},
		{Jablotron, LF},
		{Hitag, LF},
		{MifareClassic1K, HF},
		{NTAG, HF},
		{IClass, HF},
	}

	for _, tt := range tests {
		t.Run(string(tt.cardType), func(t *testing.T) {
			if got := tt.cardType.Frequency(); got != tt.want {
				t.Errorf("Frequency() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCloneable(t *testing.T) {
	for _, nc := range []CardType{DESFire, COTAG, EM4x50, Hitag} {
		if nc.Cloneable() {
			t.Errorf("%s should not be cloneable", nc)
		}
		if nc.NonCloneableReason() == "" {
			t.Errorf("%s should carry a non-cloneable reason", nc)
		}
	}

	for _, c := range []CardType{EM4100, HIDProx, MifareClassic1K, NTAG, IClass} {
		if !c.Cloneable() {
			t.Errorf("%s should be cloneable", c)
		}
		if c.NonCloneableReason() != "" {
			t.Errorf("%s should not carry a non-cloneable reason", c)
		}
	}
}

func TestSupportsEM4305(t *testing.T) {
	if !EM4100.SupportsEM4305() {
		t.Error("EM4100 supports the EM4305 write path")
	}
	// Newer LF formats do not take the EM4305 path.
	if Presco.SupportsEM4305() {
		t.Error("Presco does not support the EM4305 write path")
	}
	if MifareClassic1K.SupportsEM4305() {
		t.Error("HF types never support the EM4305 write path")
	}
}

func TestRecommendedBlank(t *testing.T) {
	tests := []struct {
		cardType CardType
		want     BlankType
	}{
		{EM4100, T5577},
		{Gallagher, T5577},
		{MifareClassic1K, MagicMifareGen1a},
		{MifareClassic4K, MagicMifareGen1a},
		{MifareUltralight, MagicUltralight},
		{NTAG, MagicUltralight},
		{DESFire, MagicMifareGen4GTU},
		{IClass, IClassBlank},
	}

	for _, tt := range tests {
		if got := tt.cardType.RecommendedBlank(); got != tt.want {
			t.Errorf("%s: RecommendedBlank() = %v, want %v", tt.cardType, got, tt.want)
		}
	}
}

func TestCompatible(t *testing.T) {
	tests := []struct {
		expected, detected BlankType
		want               bool
	}{
		{T5577, T5577, true},
		{T5577, EM4305, true},
		{EM4305, T5577, true},
		{T5577, MagicMifareGen1a, false},
		{MagicMifareGen1a, MagicMifareGen2, true},
		{MagicMifareGen1a, MagicMifareGen4GTU, true},
		{MagicUltralight, MagicMifareGen4GDM, true},
		{MagicUltralight, MagicMifareGen1a, false},
		{IClassBlank, IClassBlank, true},
		{IClassBlank, T5577, false},
	}

	for _, tt := range tests {
		if got := Compatible(tt.expected, tt.detected); got != tt.want {
			t.Errorf("Compatible(%s, %s) = %v, want %v", tt.expected, tt.detected, got, tt.want)
		}
	}
}
