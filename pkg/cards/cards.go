// Package cards defines the credential and blank taxonomy shared by the
// wizard, the gateway contract, and persistence: card types, frequencies,
// blank chip types, compatibility rules, and the recovery/phase enums.
package cards

// Frequency is the radio band a credential operates on.
type Frequency string

const (
	LF Frequency = "LF"
	HF Frequency = "HF"
)

// CardType identifies a source credential format.
type CardType string

const (
	// LF cloneable types
	EM4100    CardType = "EM4100"
	HIDProx   CardType = "HIDProx"
	Indala    CardType = "Indala"
	IOProx    CardType = "IOProx"
	AWID      CardType = "AWID"
	FDXB      CardType = "FDX_B"
	Paradox   CardType = "Paradox"
	Viking    CardType = "Viking"
	Pyramid   CardType = "Pyramid"
	Keri      CardType = "Keri"
	NexWatch  CardType = "NexWatch"
	Presco    CardType = "Presco"
	Nedap     CardType = "Nedap"
	GProxII   CardType = "GProxII"
	Gallagher CardType = "Gallagher"
	PAC       CardType = "PAC"
	Noralsy   CardType = "Noralsy"
	Jablotron CardType = "Jablotron"
	SecuraKey CardType = "SecuraKey"
	Visa2000  CardType = "Visa2000"
	Motorola  CardType = "Motorola"
	IDTECK    CardType = "IDTECK"

	// LF non-cloneable types
	COTAG  CardType = "COTAG"
	EM4x50 CardType = "EM4x50"
	Hitag  CardType = "Hitag"

	// HF types
	MifareClassic1K  CardType = "MifareClassic1K"
	MifareClassic4K  CardType = "MifareClassic4K"
	MifareUltralight CardType = "MifareUltralight"
	NTAG             CardType = "NTAG"
	DESFire          CardType = "DESFire"
	IClass           CardType = "IClass"
)

// hfTypes is the closed set of high-frequency card types.
var hfTypes = map[CardType]bool{
	MifareClassic1K:  true,
	MifareClassic4K:  true,
	MifareUltralight: true,
	NTAG:             true,
	DESFire:          true,
	IClass:           true,
}

// Frequency returns the radio band for the card type. Unknown types report LF,
// the larger family.
func (t CardType) Frequency() Frequency {
	if hfTypes[t] {
		return HF
	}
	return LF
}

// Cloneable reports whether the type can be written to a compatible blank.
func (t CardType) Cloneable() bool {
	switch t {
	case DESFire, COTAG, EM4x50, Hitag:
		return false
	}
	return true
}

// NonCloneableReason explains why a type cannot be cloned. Empty for
// cloneable types.
func (t CardType) NonCloneableReason() string {
	switch t {
	case DESFire:
		return "DESFire uses AES encryption; cloning not supported"
	case COTAG:
		return "Read-only, no clone commands available"
	case EM4x50:
		return "Requires native EM4x50 blank, not T5577-compatible"
	case Hitag:
		return "Requires native Hitag chip, not T5577-compatible"
	}
	return ""
}

// SupportsEM4305 reports whether the type can be cloned onto EM4305 blanks.
// Only the original eleven LF formats support that write path; the newer LF
// formats fail silently when targeted at EM4305.
func (t CardType) SupportsEM4305() bool {
	switch t {
	case EM4100, HIDProx, Indala, IOProx, AWID, FDXB,
		Paradox, Viking, Pyramid, Keri, NexWatch:
		return true
	}
	return false
}

// RecommendedBlank returns the default blank chip for cloning this type.
func (t CardType) RecommendedBlank() BlankType {
	switch t {
	case MifareClassic1K, MifareClassic4K:
		return MagicMifareGen1a
	case MifareUltralight, NTAG:
		return MagicUltralight
	case DESFire:
		return MagicMifareGen4GTU
	case IClass:
		return IClassBlank
	}
	// All LF types target T5577. Non-cloneable LF types also report T5577
	// as a placeholder; the cloneable flag gates actual use.
	return T5577
}

// DisplayName returns the human-readable name of the card type.
func (t CardType) DisplayName() string {
	switch t {
	case HIDProx:
		return "HID Prox"
	case IOProx:
		return "IO Prox"
	case FDXB:
		return "FDX-B"
	case GProxII:
		return "GProx II"
	case PAC:
		return "PAC/Stanley"
	case MifareClassic1K:
		return "MIFARE Classic 1K"
	case MifareClassic4K:
		return "MIFARE Classic 4K"
	case MifareUltralight:
		return "MIFARE Ultralight"
	case IClass:
		return "iCLASS"
	}
	return string(t)
}

// BlankType identifies a writable target chip.
type BlankType string

const (
	T5577              BlankType = "T5577"
	EM4305             BlankType = "EM4305"
	MagicMifareGen1a   BlankType = "MagicMifareGen1a"
	MagicMifareGen2    BlankType = "MagicMifareGen2"
	MagicMifareGen3    BlankType = "MagicMifareGen3"
	MagicMifareGen4GTU BlankType = "MagicMifareGen4GTU"
	MagicMifareGen4GDM BlankType = "MagicMifareGen4GDM"
	MagicUltralight    BlankType = "MagicUltralight"
	IClassBlank        BlankType = "IClassBlank"
)

// DisplayName returns the human-readable name of the blank type.
func (b BlankType) DisplayName() string {
	switch b {
	case MagicMifareGen1a:
		return "Magic MIFARE Gen1a"
	case MagicMifareGen2:
		return "Magic MIFARE Gen2 (CUID)"
	case MagicMifareGen3:
		return "Magic MIFARE Gen3 (UFUID)"
	case MagicMifareGen4GTU:
		return "Magic MIFARE Gen4 GTU"
	case MagicMifareGen4GDM:
		return "Magic MIFARE Gen4 GDM"
	case MagicUltralight:
		return "Magic Ultralight"
	case IClassBlank:
		return "iCLASS Blank"
	}
	return string(b)
}

// Compatible reports whether a detected blank can stand in for the expected
// blank. The magic MIFARE generations are interchangeable for classic dumps;
// the Gen4 chips additionally emulate Ultralight targets.
func Compatible(expected, detected BlankType) bool {
	if expected == detected {
		return true
	}
	switch expected {
	case T5577:
		return detected == EM4305
	case EM4305:
		return detected == T5577
	case MagicMifareGen1a, MagicMifareGen2, MagicMifareGen3:
		switch detected {
		case MagicMifareGen1a, MagicMifareGen2, MagicMifareGen3,
			MagicMifareGen4GTU, MagicMifareGen4GDM:
			return true
		}
	case MagicUltralight:
		return detected == MagicMifareGen4GTU || detected == MagicMifareGen4GDM
	}
	return false
}

// CardData is the captured credential payload.
type CardData struct {
	UID     string            `json:"uid"`
	Raw     string            `json:"raw"`
	Decoded map[string]string `json:"decoded"`
}

// CardSummary is the condensed identity recorded for source and target at
// completion.
type CardSummary struct {
	CardType    string `json:"card_type"`
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
}

// RecoveryAction is the recommended next user-facing operation after an error.
type RecoveryAction string

const (
	RecoverRetry     RecoveryAction = "Retry"
	RecoverGoBack    RecoveryAction = "GoBack"
	RecoverReconnect RecoveryAction = "Reconnect"
	RecoverManual    RecoveryAction = "Manual"
)

// ProcessPhase is a stage of HF key recovery.
type ProcessPhase string

const (
	PhaseKeyCheck     ProcessPhase = "KeyCheck"
	PhaseDarkside     ProcessPhase = "Darkside"
	PhaseNested       ProcessPhase = "Nested"
	PhaseHardnested   ProcessPhase = "Hardnested"
	PhaseStaticNested ProcessPhase = "StaticNested"
	PhaseDumping      ProcessPhase = "Dumping"
)
