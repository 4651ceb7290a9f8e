// Package wire defines the protocol-neutral façade between the session core
// and an external SyncML codec (spec §6 "the wire transport... the XML/WbXML
// codec (parse and serialize adapters only)" are out of scope for the core;
// this package is the thin façade the core programs against, grounded on
// spec §4.6/§6).
package wire

// Scheme names recognised in a Cred element (spec §4.5).
const (
	AuthTypeBasic = "syncml:auth-basic"
	AuthTypeMD5   = "syncml:auth-md5"
)

// Format names recognised in Meta/Format (spec §4.5).
const (
	FormatRaw = ""
	FormatB64 = "b64"
)

// Cred carries the Type/Format/Data triple of a SyncML Cred element.
type Cred struct {
	Type   string
	Format string
	Data   []byte
}

// Header is the SyncHdr element: session/message identity, routing, and
// optional credentials (spec §4.2 "Header").
type Header struct {
	VerDTD     string // "1.1" or "1.2"
	VerProto   string // "SyncML/1.1" or "SyncML/1.2"
	SessionID  string
	MsgID      int
	Target     string // LocURI of the receiver
	Source     string // LocURI of the sender
	RespURI    string
	Cred       *Cred
	MaxMsgSize int64
	MaxObjSize int64
	NoResp     bool
}

// Kind discriminates the concrete type behind a Command.
type Kind uint8

const (
	KindStatus Kind = iota
	KindAlert
	KindSync
	KindAdd
	KindReplace
	KindDelete
	KindMap
	KindGet
	KindPut
	KindResults
	KindFinal
)

// String returns a lowercase element-name-ish label, used in logs.
func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindAlert:
		return "alert"
	case KindSync:
		return "sync"
	case KindAdd:
		return "add"
	case KindReplace:
		return "replace"
	case KindDelete:
		return "delete"
	case KindMap:
		return "map"
	case KindGet:
		return "get"
	case KindPut:
		return "put"
	case KindResults:
		return "results"
	case KindFinal:
		return "final"
	default:
		return "unknown"
	}
}

// Command is any body element that carries a command id (Final excepted,
// which carries none).
type Command interface {
	Kind() Kind
}

// Chal is the Status/Chal challenge element, carrying the scheme to
// (re)authenticate with and, for MD5, the next nonce to use (spec §4.5).
type Chal struct {
	Type      string
	Format    string
	NextNonce []byte
}

// Status reports the outcome of a previously-sent command (spec §4.2
// "Status").
type Status struct {
	CmdID     int
	MsgRef    int
	CmdRef    int
	Cmd       Kind
	TargetRef string
	SourceRef string
	Code      int
	Chal      *Chal
}

func (*Status) Kind() Kind { return KindStatus }

// AnchorMeta carries the Last/Next anchor pair plus optional MaxObjSize
// negotiation (spec §4.2 "Sync alert").
type AnchorMeta struct {
	Last       string
	Next       string
	MaxObjSize int64
}

// AlertItem is the single Item child of a sync Alert, naming the target and
// source database URIs and the anchor meta.
type AlertItem struct {
	Target string
	Source string
	Meta   AnchorMeta
}

// Alert is both the sync-initiation alert (data = sync type code 200-229)
// and the non-sync alerts (NEXT_MESSAGE, NO_END_OF_DATA, SUSPEND, RESUME,
// DISPLAY) per spec §4.2 "Alert (non-sync)".
type Alert struct {
	CmdID int
	Data  int
	Item  *AlertItem // nil for non-sync alerts that carry no database pairing
}

func (*Alert) Kind() Kind { return KindAlert }

// Non-sync alert codes (spec §4.2).
const (
	AlertDisplay      = 100
	AlertNextMessage  = 222
	AlertNoEndOfData  = 223
	AlertSuspend      = 224
	AlertResume       = 225
)

// Sync-initiation alert codes (spec §4.1/§4.2, glossary Fast/Slow/Refresh).
const (
	AlertTwoWay             = 200
	AlertSlowSync           = 201
	AlertOneWayFromClient   = 202
	AlertRefreshFromClient  = 203
	AlertOneWayFromServer   = 204
	AlertRefreshFromServer  = 205
	AlertTwoWayByServer     = 206
)

// ItemMeta describes an item command's payload (spec §3 "Command context").
type ItemMeta struct {
	Type    string
	Format  string
	Version string
	Size    int64 // declared total size, present on the first chunk of a large object
}

// Item is one Add/Replace/Delete/Get/Put/Results child element.
type Item struct {
	Target   string
	Source   string
	Parent   string
	Meta     *ItemMeta
	Data     []byte
	MoreData bool
}

// Sync is the item-container command (spec §4.2 "Sync (item container)").
type Sync struct {
	CmdID           int
	Target          string
	Source          string
	NumberOfChanges int
	Commands        []Command
}

func (*Sync) Kind() Kind { return KindSync }

// Add, Replace, Delete carry item batches (spec §4.2 "Add / Replace /
// Delete").
type Add struct {
	CmdID int
	Items []Item
}

func (*Add) Kind() Kind { return KindAdd }

type Replace struct {
	CmdID int
	Items []Item
}

func (*Replace) Kind() Kind { return KindReplace }

type Delete struct {
	CmdID int
	Items []Item
}

func (*Delete) Kind() Kind { return KindDelete }

// MapItem associates a locally-allocated key with the peer's key for the
// same object (spec §3 "UIDMapping").
type MapItem struct {
	Target string
	Source string
}

// Map is the server-role mapping command (spec §4.2 "Map").
type Map struct {
	CmdID    int
	Target   string
	Source   string
	MapItems []MapItem
}

func (*Map) Kind() Kind { return KindMap }

// Get and Put exchange device-info payloads (spec §4.2 "Get / Put").
type Get struct {
	CmdID int
	Items []Item
}

func (*Get) Kind() Kind { return KindGet }

type Put struct {
	CmdID int
	Items []Item
}

func (*Put) Kind() Kind { return KindPut }

// Results answers a Get, carrying the requested payload (spec §4.2
// "Results").
type Results struct {
	CmdID  int
	MsgRef int
	CmdRef int
	Items  []Item
}

func (*Results) Kind() Kind { return KindResults }

// Final marks the end of a message (spec §4.1 "A Final element from the
// peer ends the current message").
type Final struct{}

func (*Final) Kind() Kind { return KindFinal }
