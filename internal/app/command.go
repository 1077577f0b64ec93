package app

import (
	"fmt"
	"time"

	"github.com/example/skate-spots/internal/directory"
	"github.com/example/skate-spots/internal/mapview"
	"github.com/example/skate-spots/internal/models"
)

type CommandKind string

const (
	CmdChangeViewport      CommandKind = "change_viewport"
	CmdClickMap            CommandKind = "click_map"
	CmdClickMarker         CommandKind = "click_marker"
	CmdShowOnMap           CommandKind = "show_on_map"
	CmdToggleExpanded      CommandKind = "toggle_expanded"
	CmdToggleLiked         CommandKind = "toggle_liked"
	CmdDeleteTrick         CommandKind = "delete_trick"
	CmdDeleteEvent         CommandKind = "delete_event"
	CmdJoinEvent           CommandKind = "join_event"
	CmdLeaveEvent          CommandKind = "leave_event"
	CmdToggleParticipation CommandKind = "toggle_participation"
	CmdOpenTrickForm       CommandKind = "open_trick_form"
	CmdOpenEventForm       CommandKind = "open_event_form"
	CmdCancelForm          CommandKind = "cancel_form"
	CmdCancelPlacement     CommandKind = "cancel_placement"
	CmdSubmitTrick         CommandKind = "submit_trick"
	CmdSubmitEvent         CommandKind = "submit_event"
	CmdAddFriend           CommandKind = "add_friend"
	CmdRemoveFriend        CommandKind = "remove_friend"
	CmdToggleFriendsPanel  CommandKind = "toggle_friends_panel"
	CmdCloseFriendsPanel   CommandKind = "close_friends_panel"
	CmdSetUsername         CommandKind = "set_username"
	CmdSetHomeSkatepark    CommandKind = "set_home_skatepark"
	CmdSelectSkatepark     CommandKind = "select_skatepark"
	CmdSetActiveTab        CommandKind = "set_active_tab"
	CmdToggleLayer         CommandKind = "toggle_layer"
	CmdToggleSidebar       CommandKind = "toggle_sidebar"
	CmdToggleFullscreen    CommandKind = "toggle_fullscreen"
	CmdExitFullscreen      CommandKind = "exit_fullscreen"
	CmdResizeSidebar       CommandKind = "resize_sidebar"
	CmdSearchEdit          CommandKind = "search_edit"
	CmdSearchNavigate      CommandKind = "search_navigate"
	CmdSelectSuggestion    CommandKind = "select_suggestion"
)

// Command is one user intent. Kind decides which of the payload fields are
// read; the others are ignored.
type Command struct {
	Kind      CommandKind      `json:"kind"`
	ID        string           `json:"id,omitempty"`
	SpotKind  models.SpotKind  `json:"spotKind,omitempty"`
	Coord     *models.Coord    `json:"coord,omitempty"`
	Viewport  *models.Viewport `json:"viewport,omitempty"`
	Selection *Selection       `json:"selection,omitempty"`
	Trick     *TrickForm       `json:"trick,omitempty"`
	Event     *EventForm       `json:"event,omitempty"`
	Friend    *models.Friend   `json:"friend,omitempty"`
	Text      string           `json:"text,omitempty"`
	Tab       Tab              `json:"tab,omitempty"`
	Layer     mapview.Layer    `json:"layer,omitempty"`
	Width     float64          `json:"width,omitempty"`
	Index     int              `json:"index,omitempty"`
}

// ClickCommand turns a click reported by a renderer into the command it
// stands for. The pending placement marker counts as a plain map click.
func ClickCommand(ev mapview.ClickEvent) Command {
	if m := ev.Marker; m != nil && m.Category != mapview.CategorySelected {
		return Command{Kind: CmdClickMarker, Selection: &Selection{Kind: m.Category, ID: m.ID, Lat: m.Lat, Lng: m.Lng}}
	}
	at := ev.At
	return Command{Kind: CmdClickMap, Coord: &at}
}

// Env is what reducers may read besides the state: the clock for new ids
// and the static directory.
type Env struct {
	Now       time.Time
	Directory *directory.Directory
}

func need[T any](p *T, kind CommandKind, field string) (T, error) {
	if p == nil {
		var zero T
		return zero, invalid(field, fmt.Sprintf("required for %s", kind))
	}
	return *p, nil
}

// Dispatch routes cmd to its reducer. On error the returned state is s.
func Dispatch(s State, cmd Command, env Env) (State, error) {
	switch cmd.Kind {
	case CmdChangeViewport:
		v, err := need(cmd.Viewport, cmd.Kind, "viewport")
		if err != nil {
			return s, err
		}
		return ChangeViewport(s, v), nil
	case CmdClickMap:
		c, err := need(cmd.Coord, cmd.Kind, "coord")
		if err != nil {
			return s, err
		}
		return ClickMap(s, c), nil
	case CmdClickMarker:
		sel, err := need(cmd.Selection, cmd.Kind, "selection")
		if err != nil {
			return s, err
		}
		return ClickMarker(s, sel), nil
	case CmdShowOnMap:
		spot, ok := findSpot(s, cmd.SpotKind, cmd.ID)
		if !ok {
			return s, fmt.Errorf("%s %s: %w", cmd.SpotKind, cmd.ID, ErrNotFound)
		}
		return ShowOnMap(s, spot), nil
	case CmdToggleExpanded:
		return ToggleExpanded(s, cmd.SpotKind, cmd.ID), nil
	case CmdToggleLiked:
		return ToggleLiked(s, cmd.ID), nil
	case CmdDeleteTrick:
		return DeleteTrick(s, cmd.ID), nil
	case CmdDeleteEvent:
		return DeleteEvent(s, cmd.ID), nil
	case CmdJoinEvent:
		return JoinEvent(s, cmd.ID)
	case CmdLeaveEvent:
		return LeaveEvent(s, cmd.ID)
	case CmdToggleParticipation:
		return ToggleParticipation(s, cmd.ID)
	case CmdOpenTrickForm:
		return OpenTrickForm(s), nil
	case CmdOpenEventForm:
		return OpenEventForm(s), nil
	case CmdCancelForm:
		return CancelForm(s), nil
	case CmdCancelPlacement:
		return CancelPlacement(s), nil
	case CmdSubmitTrick:
		f, err := need(cmd.Trick, cmd.Kind, "trick")
		if err != nil {
			return s, err
		}
		next, _, err := SubmitTrick(s, f, env.Now)
		return next, err
	case CmdSubmitEvent:
		f, err := need(cmd.Event, cmd.Kind, "event")
		if err != nil {
			return s, err
		}
		next, _, err := SubmitEvent(s, f, env.Now)
		return next, err
	case CmdAddFriend:
		f, err := need(cmd.Friend, cmd.Kind, "friend")
		if err != nil {
			return s, err
		}
		if f.UserID == "" {
			return s, invalid("friend", "userId required")
		}
		return AddFriend(s, f), nil
	case CmdRemoveFriend:
		return RemoveFriend(s, cmd.ID), nil
	case CmdToggleFriendsPanel:
		return ToggleFriendsPanel(s), nil
	case CmdCloseFriendsPanel:
		return CloseFriendsPanel(s), nil
	case CmdSetUsername:
		return SetUsername(s, cmd.Text)
	case CmdSetHomeSkatepark:
		park, err := lookupPark(env, cmd.ID)
		if err != nil {
			return s, err
		}
		return SetHomeSkatepark(s, park), nil
	case CmdSelectSkatepark:
		if cmd.ID == "" {
			return SelectSkatepark(s, nil), nil
		}
		park, err := lookupPark(env, cmd.ID)
		if err != nil {
			return s, err
		}
		return SelectSkatepark(s, &park), nil
	case CmdSetActiveTab:
		return SetActiveTab(s, cmd.Tab)
	case CmdToggleLayer:
		return ToggleLayer(s, cmd.Layer)
	case CmdToggleSidebar:
		return ToggleSidebar(s), nil
	case CmdToggleFullscreen:
		return ToggleFullscreen(s), nil
	case CmdExitFullscreen:
		return ExitFullscreen(s), nil
	case CmdResizeSidebar:
		return ResizeSidebar(s, cmd.Width), nil
	case CmdSearchEdit:
		return SearchEdit(s, cmd.Text), nil
	case CmdSearchNavigate:
		return SearchNavigate(s), nil
	case CmdSelectSuggestion:
		return SelectSuggestion(s, cmd.Index)
	}
	return s, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Kind)
}

func lookupPark(env Env, id string) (directory.Skatepark, error) {
	if env.Directory == nil {
		return directory.Skatepark{}, fmt.Errorf("skatepark %s: %w", id, ErrNotFound)
	}
	park, ok := env.Directory.Skatepark(id)
	if !ok {
		return directory.Skatepark{}, fmt.Errorf("skatepark %s: %w", id, ErrNotFound)
	}
	return park, nil
}

func findSpot(s State, kind models.SpotKind, id string) (models.Spot, bool) {
	switch kind {
	case models.KindTrick:
		for _, t := range s.Tricks {
			if t.ID == id {
				return models.NewTrickSpot(t), true
			}
		}
	case models.KindEvent:
		for _, e := range s.Events {
			if e.ID == id {
				return models.NewEventSpot(e), true
			}
		}
	}
	return models.Spot{}, false
}
