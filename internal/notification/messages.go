package notification

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/phrazzld/tasktracker-api/internal/domain"
)

// Tag helpers. Clients collapse notifications that share a tag.
func ReminderTag(taskID string) string  { return "reminder-" + taskID }
func StartTag(taskID string) string     { return "task-" + taskID }
func CompletedTag(taskID string) string { return "task-completed-" + taskID }

// Fixed tags
const (
	TagTaskReminderRequest = "task-reminder-"
	TagWater               = "water-reminder"
	TagMorningDigest       = "daily-morning"
	TagEveningDigest       = "daily-evening"
	TagTest                = "test-notification"
)

// CompletionMessages is the pool a completion celebration draws from.
var CompletionMessages = []string{
	"Amazing work! You're absolutely crushing it! 💖✨",
	"Fantastic! You're doing incredible! 💕🌟",
	"Outstanding! Keep up the amazing work! 💖🎉",
	"Brilliant! You're unstoppable! 💕💪",
	"Incredible! You're on fire! 💖🔥",
	"Spectacular! You're a superstar! 💕⭐",
	"Wonderful! You're doing great! 💖🌈",
	"Magnificent! You're awesome! 💕🚀",
	"You're such a star! Keep shining! 💖✨",
	"Absolutely adorable work! 💕🌸",
	"You're doing beautifully! 💖🦋",
	"Sweet success! You're amazing! 💕🍯",
}

// Picker chooses an index in [0, n). It must be safe for concurrent use.
type Picker func(n int) int

// RandomPicker picks uniformly at random.
func RandomPicker() Picker {
	var mu sync.Mutex
	rnd := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	return func(n int) int {
		mu.Lock()
		defer mu.Unlock()
		return rnd.IntN(n)
	}
}

// TaskReminder is the lead-time reminder fired before a task starts.
func TaskReminder(task *domain.Task, leadMinutes int) Payload {
	return Payload{
		Title: "💖 Task Reminder",
		Body:  fmt.Sprintf("%s starts in %d minutes! 💕", task.Title, leadMinutes),
		Icon:  DefaultIcon,
		Tag:   ReminderTag(task.ID),
		Data: map[string]any{
			"type":            "task-reminder",
			"taskId":          task.ID,
			"reminderMinutes": leadMinutes,
		},
		Actions: []Action{
			{Action: "view", Title: "💖 View Task"},
			{Action: "dismiss", Title: "💤 Dismiss"},
		},
		RequireInteraction: true,
	}
}

// TaskStart is fired at a task's start instant.
func TaskStart(task *domain.Task) Payload {
	return Payload{
		Title: "💕 Task Time!",
		Body:  fmt.Sprintf("Time for: %s 💖", task.Title),
		Icon:  DefaultIcon,
		Tag:   StartTag(task.ID),
		Data: map[string]any{
			"type":   "task-start",
			"taskId": task.ID,
		},
		Actions: []Action{
			{Action: "start", Title: "💖 Start Task"},
			{Action: "snooze", Title: "💤 Snooze 5min"},
		},
		RequireInteraction: true,
	}
}

// TaskReminderRequest is the reminder sent on explicit request through the API.
func TaskReminderRequest(taskID, title string, minutes int) Payload {
	return Payload{
		Title: "💖 Task Reminder",
		Body:  fmt.Sprintf("%s starts in %d minutes! 💕", title, minutes),
		Icon:  DefaultIcon,
		Tag:   TagTaskReminderRequest + taskID,
		Data: map[string]any{
			"type":            "task-reminder",
			"taskId":          taskID,
			"reminderMinutes": minutes,
		},
		Actions: []Action{
			{Action: "view", Title: "💖 View Task"},
			{Action: "dismiss", Title: "💤 Snooze"},
		},
	}
}

// TaskCompleted celebrates a completed task with a message from the pool.
func TaskCompleted(taskID, title string, pick Picker) Payload {
	if pick == nil {
		pick = RandomPicker()
	}
	message := CompletionMessages[pick(len(CompletionMessages))]
	return Payload{
		Title: "💖 Task Completed!",
		Body:  fmt.Sprintf("%s - %s", title, message),
		Icon:  DefaultIcon,
		Tag:   CompletedTag(taskID),
		Data: map[string]any{
			"type":   "task-completed",
			"taskId": taskID,
		},
		Actions: []Action{
			{Action: "view", Title: "💖 Celebrate!"},
			{Action: "dismiss", Title: "💕 Next Task"},
		},
	}
}

// WaterReminder nudges the user to drink water.
func WaterReminder() Payload {
	return Payload{
		Title: "💧 Water Reminder 💖",
		Body:  "Time to hydrate! Your body needs some love 💕",
		Icon:  DefaultIcon,
		Tag:   TagWater,
		Data:  map[string]any{"type": "water-reminder"},
		Actions: []Action{
			{Action: "view", Title: "💖 Drink Water"},
			{Action: "dismiss", Title: "💤 Later"},
		},
	}
}

// MorningDigest announces today's task count.
func MorningDigest(pending int) Payload {
	return Payload{
		Title: "💖 Good Morning!",
		Body: fmt.Sprintf(
			"You have %d tasks scheduled for today. Let's make it a productive day! 💕", pending),
		Icon: DefaultIcon,
		Tag:  TagMorningDigest,
		Data: map[string]any{"type": "daily-morning"},
	}
}

// EveningDigest reports what is left for today.
func EveningDigest(remaining int) Payload {
	p := Payload{
		Icon: DefaultIcon,
		Tag:  TagEveningDigest,
		Data: map[string]any{"type": "daily-evening"},
	}
	if remaining > 0 {
		p.Title = "💕 Evening Check-in"
		p.Body = fmt.Sprintf("You still have %d tasks to complete today. You've got this! 💖", remaining)
	} else {
		p.Title = "💖 Great Job!"
		p.Body = "All tasks completed for today! Time to relax and celebrate! 💕🎉"
	}
	return p
}

// Test confirms that push delivery works end to end.
func Test() Payload {
	return Payload{
		Title: "💖 Test Notification",
		Body:  "Push notifications are working! 💕",
		Icon:  DefaultIcon,
		Tag:   TagTest,
		Data:  map[string]any{"type": "test"},
	}
}
