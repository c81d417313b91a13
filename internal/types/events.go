// internal/types/events.go
package types

// ControlEvent is the closed set of inbound events the state machine
// dispatches on. The transport layer parses platform payloads into these;
// nothing downstream ever sees raw callback strings.
type ControlEvent interface {
	isControlEvent()
}

// NewArtifact announces a freshly submitted audio clip. Key is the session
// key the transport assigned to the message the controls will hang off.
type NewArtifact struct {
	Key      SessionKey
	Artifact AudioArtifactRef
}

// OpenModeMenu asks for the mode-selection controls.
type OpenModeMenu struct {
	Key SessionKey
}

// SelectMode picks a mode from the open menu and triggers a regeneration.
type SelectMode struct {
	Key  SessionKey
	Mode Mode
}

// CancelModeMenu dismisses the mode menu without changing anything.
type CancelModeMenu struct {
	Key SessionKey
}

// Redo regenerates with the last mode used.
type Redo struct {
	Key SessionKey
}

// Confirm closes the session; its controls are removed and every later
// event on the same key is rejected as expired.
type Confirm struct {
	Key SessionKey
}

// HistoryRequest navigates the owner's persisted results.
type HistoryRequest struct {
	Owner     OwnerKey
	Cursor    string
	Direction Direction
	PageSize  int
}

func (NewArtifact) isControlEvent()    {}
func (OpenModeMenu) isControlEvent()   {}
func (SelectMode) isControlEvent()     {}
func (CancelModeMenu) isControlEvent() {}
func (Redo) isControlEvent()           {}
func (Confirm) isControlEvent()        {}
func (HistoryRequest) isControlEvent() {}

// Direction selects which history page to fetch relative to a cursor.
type Direction string

const (
	DirInitial Direction = "initial"
	DirNext    Direction = "next"
	DirPrev    Direction = "prev"
)

// ControlSet names the button group attached to an outbound render. The
// transport maps these to platform-native controls.
type ControlSet string

const (
	ControlsActions ControlSet = "actions" // mode menu, redo, history, confirm
	ControlsModes   ControlSet = "modes"   // one button per mode, plus cancel
	ControlsPager   ControlSet = "pager"   // prev/next
	ControlsNone    ControlSet = "none"
)

// Render is the closed set of outbound render instructions.
type Render interface {
	isRender()
}

// RenderSummary shows summary text with the full action control set.
type RenderSummary struct {
	Key      SessionKey
	Text     string
	Mode     Mode
	Controls ControlSet
}

// RenderModeMenu shows the mode-selection controls; content is unchanged.
type RenderModeMenu struct {
	Key      SessionKey
	Current  Mode
	Controls ControlSet
}

// RenderError surfaces a failure notice. When prior content exists it is
// kept on screen and the notice is transient.
type RenderError struct {
	Key      SessionKey
	Message  string
	Controls ControlSet
}

// RenderHistoryPage shows one page of persisted records with pagination
// cursors minted by the paginator.
type RenderHistoryPage struct {
	Owner      OwnerKey
	Records    []*SummaryRecord
	NextCursor string
	PrevCursor string
	Total      int64
	Controls   ControlSet
}

// RenderConfirmed shows the final text with all controls removed.
type RenderConfirmed struct {
	Key  SessionKey
	Text string
}

func (RenderSummary) isRender()     {}
func (RenderModeMenu) isRender()    {}
func (RenderError) isRender()       {}
func (RenderHistoryPage) isRender() {}
func (RenderConfirmed) isRender()   {}
