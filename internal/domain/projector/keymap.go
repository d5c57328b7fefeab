package projector

// Playback entity command identifiers dispatched by the host.
const (
	CmdOn            = "on"
	CmdOff           = "off"
	CmdToggle        = "toggle"
	CmdPlayPause     = "play_pause"
	CmdStop          = "stop"
	CmdNext          = "next"
	CmdPrevious      = "previous"
	CmdFastForward   = "fast_forward"
	CmdRewind        = "rewind"
	CmdRecord        = "record"
	CmdSeek          = "seek"
	CmdVolumeUp      = "volume_up"
	CmdVolumeDown    = "volume_down"
	CmdMuteToggle    = "mute_toggle"
	CmdChannelUp     = "channel_up"
	CmdChannelDown   = "channel_down"
	CmdCursorUp      = "cursor_up"
	CmdCursorDown    = "cursor_down"
	CmdCursorLeft    = "cursor_left"
	CmdCursorRight   = "cursor_right"
	CmdCursorEnter   = "cursor_enter"
	CmdHome          = "home"
	CmdMenu          = "menu"
	CmdContextMenu   = "context_menu"
	CmdGuide         = "guide"
	CmdInfo          = "info"
	CmdBack          = "back"
	CmdSelectSource  = "select_source"
	CmdSelectChannel = "select_channel"
	CmdSendCmd       = "send_cmd"
)

// playerKeys maps playback cursor/menu commands straight to backend keys.
var playerKeys = map[string]string{
	CmdVolumeUp:    "VolumeUp",
	CmdVolumeDown:  "VolumeDown",
	CmdCursorUp:    "ArrowUp",
	CmdCursorDown:  "ArrowDown",
	CmdCursorLeft:  "ArrowLeft",
	CmdCursorRight: "ArrowRight",
	CmdCursorEnter: "Enter",
	CmdHome:        "MediaTopMenu",
	CmdMenu:        "Info",
	CmdContextMenu: "Options",
	CmdGuide:       "Guide",
	CmdInfo:        "Info",
	CmdBack:        "Escape",
}

// SimpleCommands is the remote entity command vocabulary, exposed as
// capability metadata during registration.
var SimpleCommands = []string{
	"POWER_ON", "POWER_OFF", "POWER_TOGGLE",
	"UP", "DOWN", "LEFT", "RIGHT", "SELECT", "BACK",
	"PLAYPAUSE", "STOP", "RECORD", "REWIND", "FASTFORWARD",
	"VOLUME_UP", "VOLUME_DOWN", "MUTE",
	"CHANNEL_UP", "CHANNEL_DOWN", "GUIDE",
	"0", "1", "2", "3", "4", "5", "6", "7", "8", "9",
	"RED", "GREEN", "YELLOW", "BLUE",
	"HOME", "TV", "MENU", "SOURCE",
}

// simpleCommandKeys maps remote simple commands to backend key names.
// Digits map to themselves.
var simpleCommandKeys = map[string]string{
	"UP":           "ArrowUp",
	"DOWN":         "ArrowDown",
	"LEFT":         "ArrowLeft",
	"RIGHT":        "ArrowRight",
	"SELECT":       "Ok",
	"BACK":         "Return",
	"STOP":         "MediaStop",
	"RECORD":       "MediaRecord",
	"REWIND":       "MediaRewind",
	"FASTFORWARD":  "MediaFastForward",
	"VOLUME_UP":    "VolumeUp",
	"VOLUME_DOWN":  "VolumeDown",
	"MUTE":         "VolumeMute",
	"CHANNEL_UP":   "ChannelUp",
	"CHANNEL_DOWN": "ChannelDown",
	"GUIDE":        "Guide",
	"RED":          "Red",
	"GREEN":        "Green",
	"YELLOW":       "Yellow",
	"BLUE":         "Blue",
	"HOME":         "Menu",
	"TV":           "MediaPrevious",
	"MENU":         "Info",
	"SOURCE":       "Settings",
}

func init() {
	for d := '0'; d <= '9'; d++ {
		simpleCommandKeys[string(d)] = string(d)
	}
}

// streamingApps are sources that can only be reached by opening the top menu.
// The backend has no app deep-link primitive; this is a surfaced capability
// gap, not a silent no-op.
var streamingApps = map[string]bool{
	"Netflix":     true,
	"BBC iPlayer": true,
	"ITVX":        true,
	"All 4":       true,
	"My5":         true,
	"Prime Video": true,
	"YouTube":     true,
	"Disney+":     true,
}
