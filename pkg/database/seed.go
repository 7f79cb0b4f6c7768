package database

import (
	"context"
	"time"

	"ballot-engine/internal/domain/poll"
	"ballot-engine/internal/repository"
	"ballot-engine/pkg/logger"

	"github.com/google/uuid"
)

// SeedResult lists the polls created by Seed.
type SeedResult struct {
	Polls []*poll.Poll
}

func choice(pollID uuid.UUID, kind poll.ChoiceKind, label string, position int, party *poll.Choice) poll.Choice {
	c := poll.Choice{ID: uuid.New(), PollID: pollID, Kind: kind, Label: label, Position: position}
	if party != nil {
		c.PartyID = uuid.NullUUID{UUID: party.ID, Valid: true}
	}
	return c
}

// SeedPolls builds demo data: an election with parties and candidates, a referendum,
// and a two-question survey. All start tomorrow in SCHEDULED.
func SeedPolls(now time.Time) []*poll.Poll {
	start := poll.Day(now).AddDate(0, 0, 1)
	end := start.AddDate(0, 0, 14)

	election := &poll.Poll{
		ID: uuid.New(), Kind: poll.KindElection, Status: poll.StatusScheduled,
		Title: "Municipal council election", ElectionType: poll.ElectionLocal,
		StartDate: start, EndDate: end, CreatedAt: now, UpdatedAt: now,
	}
	green := choice(election.ID, poll.ChoiceParty, "Green Alliance", 0, nil)
	civic := choice(election.ID, poll.ChoiceParty, "Civic Union", 1, nil)
	election.Choices = []poll.Choice{
		green, civic,
		choice(election.ID, poll.ChoiceCandidate, "A. Moreau", 2, &green),
		choice(election.ID, poll.ChoiceCandidate, "K. Osei", 3, &civic),
		choice(election.ID, poll.ChoiceCandidate, "R. Lindqvist", 4, nil),
	}

	referendum := &poll.Poll{
		ID: uuid.New(), Kind: poll.KindReferendum, Status: poll.StatusScheduled,
		Title: "Harbour bridge", Question: "Should the city fund the harbour bridge?",
		StartDate: start, EndDate: end, CreatedAt: now, UpdatedAt: now,
	}
	referendum.Choices = []poll.Choice{
		choice(referendum.ID, poll.ChoiceOption, "Yes", 0, nil),
		choice(referendum.ID, poll.ChoiceOption, "No", 1, nil),
	}

	survey := uuid.NullUUID{UUID: uuid.New(), Valid: true}
	transport := &poll.Poll{
		ID: uuid.New(), Kind: poll.KindSurveyQuestion, Status: poll.StatusScheduled, SurveyID: survey,
		Title: "Mobility survey", Question: "How do you usually commute?",
		StartDate: start, EndDate: end, CreatedAt: now, UpdatedAt: now,
	}
	transport.Choices = []poll.Choice{
		choice(transport.ID, poll.ChoiceOption, "Bike", 0, nil),
		choice(transport.ID, poll.ChoiceOption, "Public transport", 1, nil),
		choice(transport.ID, poll.ChoiceOption, "Car", 2, nil),
	}
	parking := &poll.Poll{
		ID: uuid.New(), Kind: poll.KindSurveyQuestion, Status: poll.StatusScheduled, SurveyID: survey,
		Title: "Mobility survey", Question: "Should downtown parking be reduced?",
		StartDate: start, EndDate: end, CreatedAt: now, UpdatedAt: now,
	}
	parking.Choices = []poll.Choice{
		choice(parking.ID, poll.ChoiceOption, "Agree", 0, nil),
		choice(parking.ID, poll.ChoiceOption, "Disagree", 1, nil),
	}

	return []*poll.Poll{election, referendum, transport, parking}
}

// Seed inserts the demo polls through the given repository.
func Seed(ctx context.Context, polls repository.PollRepository) (*SeedResult, error) {
	log := logger.GetGlobalLogger()
	log.Infof("Starting database seeding...")

	result := &SeedResult{}
	for _, p := range SeedPolls(time.Now().UTC()) {
		if err := polls.Create(ctx, p); err != nil {
			return nil, err
		}
		log.Infof("Seeded %s poll %q (%s)", p.Kind, p.Title, p.ID)
		result.Polls = append(result.Polls, p)
	}
	return result, nil
}
