package twitchapi

// RewardPayload is the Helix create-custom-reward request body.
type RewardPayload struct {
	Title               string `json:"title"`
	Cost                int    `json:"cost"`
	Prompt              string `json:"prompt,omitempty"`
	BackgroundColor     string `json:"background_color,omitempty"`
	IsUserInputRequired bool   `json:"is_user_input_required"`
}

// PlaySoundPrefix is shared with the sound handler, which matches redeemed
// reward titles against it.
const PlaySoundPrefix = "Play sound: "

// PlaySound builds a sound-effect reward for the given clip name.
func PlaySound(name string) RewardPayload {
	return RewardPayload{
		Title:           PlaySoundPrefix + name,
		Cost:            50,
		BackgroundColor: "#B00B69",
	}
}

// Rewards is the catalogue created on the channel at startup and removed at
// shutdown.
var Rewards = []RewardPayload{
	{
		Title:               "Change headphones colour",
		Cost:                50,
		Prompt:              "What colour should they be changed to?",
		IsUserInputRequired: true,
		BackgroundColor:     "#5DADEC",
	},
	{
		Title:               "Run TTS",
		Cost:                50,
		Prompt:              "What do you want to say?",
		IsUserInputRequired: true,
		BackgroundColor:     "#69B00B",
	},
	{
		Title:               "Receipt print",
		Cost:                10,
		Prompt:              "What do you want to print?",
		IsUserInputRequired: true,
		BackgroundColor:     "#69BEEF",
	},
	{
		Title:               "Large receipt print",
		Cost:                100,
		Prompt:              "What do you want to print?",
		IsUserInputRequired: true,
		BackgroundColor:     "#69BEEF",
	},
	PlaySound("laughtrack"),
	PlaySound("shotgun"),
	PlaySound("jab"),
	PlaySound("police siren"),
	PlaySound("vine boom"),
	PlaySound("Roblox death"),
	PlaySound("rimshot"),
	PlaySound("uwu"),
	PlaySound("bruh"),
	PlaySound("aughhhhh"),
	PlaySound("Spongebob disappointed"),
	PlaySound("oh my god"),
	PlaySound("a bean"),
	PlaySound("I can't believe you've done this"),
	PlaySound("blast"),
	PlaySound("AUGHHHHHHHHH"),
	PlaySound("clown"),
	PlaySound("boo"),
}
