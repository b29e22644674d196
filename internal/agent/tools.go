// Package agent exposes games to a Gemini Live voice host as callable tools.
package agent

import (
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/game"
)

const (
	ToolGetTriviaQuestion = "get_trivia_question"
	ToolCheckTriviaAnswer = "check_trivia_answer"
	ToolEndGame           = "end_game"
	ToolEndCall           = "end_call"
)

const (
	DefaultModel = "gemini-2.0-flash-live-001"
	DefaultVoice = "Puck"

	defaultTemperature = 0.7
)

// Declarations describes the tools the voice host may call.
func Declarations() []*genai.FunctionDeclaration {
	return []*genai.FunctionDeclaration{
		{
			Name:        ToolGetTriviaQuestion,
			Description: "Fetch the next trivia question of the game. Read the question and its options to the player.",
		},
		{
			Name:        ToolCheckTriviaAnswer,
			Description: "Check the player's answer to the current question.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"answer": {
						Type:        genai.TypeString,
						Description: "The player's answer, as they said it.",
					},
				},
				Required: []string{"answer"},
			},
		},
		{
			Name:        ToolEndGame,
			Description: "Finish the game after the last question was answered and get the final score.",
		},
		{
			Name:        ToolEndCall,
			Description: "Hang up. Use it when the player wants to stop playing.",
		},
	}
}

// Instructions is the system prompt of the trivia host.
func Instructions(totalQuestions int, schedule []domain.Difficulty) string {
	return fmt.Sprintf(`You are an upbeat trivia game host talking to a single player over voice.

The game has exactly %d questions. %s

Rules:
- Greet the player briefly, then call %s to get the first question.
- Ask one question at a time. Read the question and every option clearly.
- When the player answers, call %s with their answer exactly as they said it.
- Tell the player whether they were right, and the correct answer when they were not.
- Then call %s for the next question. Never make up questions or answers yourself.
- After the last answer, call %s and announce the final score.
- If the player wants to stop, call %s.
- If a tool returns an Unavailable error, apologize and try again once.
- If %s says the question expired, call %s for a new one.`,
		totalQuestions, describeSchedule(totalQuestions, schedule),
		ToolGetTriviaQuestion, ToolCheckTriviaAnswer, ToolGetTriviaQuestion, ToolEndGame, ToolEndCall,
		ToolCheckTriviaAnswer, ToolGetTriviaQuestion)
}

// describeSchedule spells out the difficulty of every question, e.g.
// "Questions 1 to 4 are medium, question 5 is hard."
func describeSchedule(total int, schedule []domain.Difficulty) string {
	var parts []string
	for start := 0; start < total; {
		d := game.ScheduleAt(schedule, start)
		end := start
		for end+1 < total && game.ScheduleAt(schedule, end+1) == d {
			end++
		}

		if start == end {
			parts = append(parts, fmt.Sprintf("question %d is %s", start+1, d))
		} else {
			parts = append(parts, fmt.Sprintf("questions %d to %d are %s", start+1, end+1, d))
		}
		start = end + 1
	}

	if len(parts) == 0 {
		return ""
	}

	s := strings.Join(parts, ", ") + "."
	return strings.ToUpper(s[:1]) + s[1:]
}

type LiveConfig struct {
	Model       string  `mapstructure:"model"`
	Voice       string  `mapstructure:"voice"`
	Temperature float32 `mapstructure:"temperature"`

	// Game shape, taken from the game config.
	TotalQuestions int                 `mapstructure:"-"`
	Schedule       []domain.Difficulty `mapstructure:"-"`
}

// ConnectConfig builds the Gemini Live session config of the trivia host.
func (c LiveConfig) ConnectConfig() *genai.LiveConnectConfig {
	voice := c.Voice
	if voice == "" {
		voice = DefaultVoice
	}

	total := c.TotalQuestions
	if total <= 0 {
		total = game.DefaultTotalQuestions
	}

	temperature := c.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}

	return &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		Temperature:        genai.Ptr(temperature),
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
		SystemInstruction: genai.NewContentFromText(Instructions(total, c.Schedule), genai.RoleUser),
		Tools: []*genai.Tool{
			{FunctionDeclarations: Declarations()},
		},
	}
}

// ModelName returns the configured model, or the default live model.
func (c LiveConfig) ModelName() string {
	if c.Model == "" {
		return DefaultModel
	}

	return c.Model
}
