package persona

// Persona captures the role-playing attributes the prompt layer consumes.
// Personality and BackgroundStory feed directly into the generated system
// prompt; either may be empty without failing a turn.
type Persona struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	AvatarURL       string `json:"avatarUrl,omitempty"`
	BackgroundStory string `json:"backgroundStory,omitempty"`
	Personality     string `json:"personality,omitempty"`
	IsMine          bool   `json:"isMine"`
}
