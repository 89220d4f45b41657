package wizard

// State is the client-visible workflow state. It is a superset of the
// authoritative machine's step set: the firmware sub-flow states and the
// post-flash redetect state exist only on this side.
type State string

const (
	StateIdle                 State = "idle"
	StateDetectingDevice      State = "detectingDevice"
	StateCheckingFirmware     State = "checkingFirmware"
	StateFirmwareOutdated     State = "firmwareOutdated"
	StateUpdatingFirmware     State = "updatingFirmware"
	StateRedetectingDevice    State = "redetectingDevice"
	StateDeviceConnected      State = "deviceConnected"
	StateScanningCard         State = "scanningCard"
	StateCredentialIdentified State = "credentialIdentified"
	StateHfProcessing         State = "hfProcessing"
	StateDumpReady            State = "dumpReady"
	StateWaitingForBlank      State = "waitingForBlank"
	StateBlankDetected        State = "blankDetected"
	StateWriting              State = "writing"
	StateVerifying            State = "verifying"
	StateVerificationComplete State = "verificationComplete"
	StateComplete             State = "complete"
	StateError                State = "error"
)

// Source tags the workflow step a failure originated from. The error state's
// outbound transitions are keyed off (recovery action, source).
type Source string

const (
	SourceDetect Source = "detect"
	SourceScan   Source = "scan"
	SourceBlank  Source = "blank"
	SourceWrite  Source = "write"
	SourceVerify Source = "verify"
)
