package at

const (
	// Terminal Control
	CRLF   = "\r\n"
	Prompt = "> "
	CtrlZ  = "\x1a"

	// Response Codes
	OK         = "OK"
	ERROR      = "ERROR"
	NoCarrier  = "NO CARRIER"
	NoDialtone = "NO DIALTONE"
	Busy       = "BUSY"
	NoAnswer   = "NO ANSWER"
	CmeError   = "+CME ERROR:"
	CmsError   = "+CMS ERROR:"

	// URCs (Unsolicited Result Codes)
	UrcNewMsg         = "+CMTI:"
	UrcSMSDeliver     = "+CMT:"
	UrcMessageReport  = "+CDSI:"
	UrcSignalStrength = "+CSQ:"
	UrcCall           = "RING"
)

// Commands used by the power monitor. Only text mode SMS is supported.
const (
	CmdAt          = "AT"
	CmdSetTextMode = "AT+CMGF=1"
	// CmdDirectDelivery routes new messages straight to the line as +CMT
	// URCs instead of storing them on the SIM.
	CmdDirectDelivery = "AT+CNMI=2,2,0,0,0"
)

// CmdSendSMS returns the command that opens the SMS body prompt for number.
func CmdSendSMS(number string) string {
	return `AT+CMGS="` + number + `"`
}

type ResponseType int

const (
	TypeFinal  ResponseType = iota // OK, ERROR
	TypeURC                        // Asynchronous notifications
	TypeData                       // Intermediate command output (+CSQ: ...)
	TypePrompt                     // SMS input prompt
)

func (t ResponseType) String() string {
	switch t {
	case TypeFinal:
		return "final"
	case TypeURC:
		return "urc"
	case TypeData:
		return "data"
	case TypePrompt:
		return "prompt"
	default:
		return "unknown"
	}
}
