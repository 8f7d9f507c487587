package notification

// Message is a payload addressed to one plugin. Fields are fixed at
// construction.
type Message struct {
	pluginID string
	data     Payload
}

// NewMessage addresses data to pluginID. The request name is the payload kind.
func NewMessage(pluginID string, data Payload) Message {
	return Message{pluginID: pluginID, data: data}
}

func (m Message) PluginID() string { return m.pluginID }

// RequestName is the name the plugin receives the notification under.
func (m Message) RequestName() string {
	if m.data == nil {
		return ""
	}
	return string(m.data.Kind())
}

func (m Message) Kind() Kind {
	if m.data == nil {
		return ""
	}
	return m.data.Kind()
}

func (m Message) Data() Payload { return m.data }
