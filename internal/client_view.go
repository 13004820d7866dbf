package internal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	appTitleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).Padding(0, 1)
	chatHeaderStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("109")).MarginTop(1)
	connectedStyle     = statusStyle.Copy().Foreground(lipgloss.Color("42")).Bold(true)
	connectingStyle    = statusStyle.Copy().Foreground(lipgloss.Color("178")).Italic(true)
	errorStyle         = statusStyle.Copy().Foreground(lipgloss.Color("196")).Bold(true)
	messageBoxStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("60")).Padding(1, 2).MarginTop(1)
	messageBodyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("253"))
	inputBoxStyle      = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1).MarginTop(1)
	timestampStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	usernameStyle      = lipgloss.NewStyle().Bold(true)
	activeUserStyle    = usernameStyle.Copy().Foreground(lipgloss.Color("213"))
	systemMessageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	typingStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	hintStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).MarginTop(1)
	dividerStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("237")).Render(" ┃ ")
	userColorPalette   = []lipgloss.Color{
		lipgloss.Color("45"),
		lipgloss.Color("81"),
		lipgloss.Color("141"),
		lipgloss.Color("98"),
		lipgloss.Color("63"),
		lipgloss.Color("135"),
		lipgloss.Color("32"),
	}
)

func (model *TUIModel) View() string {
	if model.mode == modeNamePrompt {
		return model.renderNamePromptView()
	}
	return model.renderChatView()
}

func (model *TUIModel) renderNamePromptView() string {
	title := appTitleStyle.Render("RelayChat")
	hint := hintStyle.Render("Pick a display name and press Enter.")
	input := inputBoxStyle.Render(model.textInput.View())
	return lipgloss.JoinVertical(lipgloss.Left, title, hint, input)
}

func (model *TUIModel) renderChatView() string {
	headerSegments := []string{"RelayChat " + Version, model.scopeLabel(), fmt.Sprintf("User %s", model.username)}
	if len(model.presence) > 0 {
		headerSegments = append(headerSegments, fmt.Sprintf("%d online", len(model.presence)))
	}
	header := chatHeaderStyle.Render(strings.Join(headerSegments, dividerStyle))

	var statusLine string
	switch {
	case model.isConnected:
		statusLine = connectedStyle.Render("Connected")
	case model.connectionErr != nil:
		statusLine = errorStyle.Render("Reconnecting: " + model.connectionErr.Error())
	default:
		statusLine = connectingStyle.Render("Connecting…")
	}

	var messageLines []string
	for _, line := range model.lines {
		messageLines = append(messageLines, model.renderLine(line))
	}
	if len(messageLines) == 0 {
		messageLines = append(messageLines, systemMessageStyle.Render("No messages yet. Say hi and start the conversation."))
	}
	messagesView := messageBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, messageLines...))

	sections := []string{header, statusLine, messagesView}
	if model.typingFrom != "" {
		sections = append(sections, typingStyle.Render(model.typingFrom+" is typing…"))
	}
	sections = append(sections, inputBoxStyle.Render(model.textInput.View()))
	sections = append(sections, hintStyle.Render("/join <room> • /leave • /dm <user> • /global • /more • /file <path> • /who • /quit"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (model *TUIModel) scopeLabel() string {
	switch model.scope {
	case ScopeRoom:
		return fmt.Sprintf("Room %s", model.room)
	case ScopeDM:
		return fmt.Sprintf("DM with %s", model.dmPeerName)
	default:
		return "Global"
	}
}

// renderLine stamps the timestamp and colors the sender. Attachment-only
// messages still show the file name so the line is never blank.
func (model *TUIModel) renderLine(line chatLine) string {
	timestamp := timestampStyle.Render(fmt.Sprintf("[%s]", line.ts.Local().Format("15:04:05")))
	if line.kind == lineSystem {
		return lipgloss.JoinHorizontal(lipgloss.Left, timestamp, " ", systemMessageStyle.Render(line.text))
	}

	var nameStyle lipgloss.Style
	if line.msg.UserID == model.selfID {
		nameStyle = activeUserStyle
	} else {
		nameStyle = usernameStyle.Copy().Foreground(colorForUser(line.msg.Username))
	}
	name := nameStyle.Render(line.msg.Username)

	body := line.msg.Text
	if line.msg.File != nil {
		attachment := fmt.Sprintf("⎙ %s", line.msg.File.Name)
		if body == "" {
			body = attachment
		} else {
			body = body + "  " + attachment
		}
	}
	bodyText := messageBodyStyle.Render(strings.ReplaceAll(body, "\n", "\n   "))

	return lipgloss.JoinHorizontal(lipgloss.Left, timestamp, " ", name, ": ", bodyText)
}

func colorForUser(name string) lipgloss.Color {
	if name == "" {
		return userColorPalette[0]
	}
	var sum int
	for _, r := range name {
		sum += int(r)
	}
	return userColorPalette[sum%len(userColorPalette)]
}
