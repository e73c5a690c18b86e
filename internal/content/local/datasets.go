package local

import "github.com/serenemind/serene/backend/internal/models"

func init() {
	register(&staticProvider{
		category: models.CategoryBreathing,
		entries: []staticEntry{
			{slug: "box-breathing", name: "Box Breathing", description: "Four counts in, hold, out, hold. A steady square to settle the nervous system."},
			{slug: "4-7-8", name: "4-7-8 Breath", description: "Inhale for four, hold for seven, exhale for eight. Useful before sleep."},
			{slug: "coherent-breathing", name: "Coherent Breathing", description: "Five breaths per minute to balance heart rate variability."},
			{slug: "lions-breath", name: "Lion's Breath", description: "A forceful exhale to release tension in the face and chest.", premium: true},
		},
	})

	register(&staticProvider{
		category: models.CategoryMeditation,
		entries: []staticEntry{
			{slug: "body-scan", name: "Body Scan", description: "Move attention slowly from toes to crown, noticing without fixing."},
			{slug: "loving-kindness", name: "Loving Kindness", description: "Extend goodwill to yourself, a friend, a stranger, and beyond."},
			{slug: "open-awareness", name: "Open Awareness", description: "Rest attention on whatever arises, without chasing or pushing away.", premium: true},
		},
	})

	register(&staticProvider{
		category: models.CategorySleep,
		entries: []staticEntry{
			{slug: "rain-on-leaves", name: "Rain on Leaves", description: "A slow story set in a forest cabin as rain settles in for the night."},
			{slug: "night-train", name: "Night Train", description: "Drift off to the rhythm of a sleeper train crossing quiet country.", premium: true},
			{slug: "harbor-lights", name: "Harbor Lights", description: "An evening walk along a calm harbor as the town goes to sleep."},
		},
	})
}
