package service

import (
	"github.com/google/uuid"
	"github.com/stemsi/proctor-bot/internal/model"
)

// TemplatePassingScore is the threshold given to every starter certification.
const TemplatePassingScore = 80

type templateSeed struct {
	name        string
	description string
	questions   []questionSeed
}

type questionSeed struct {
	text    string
	answers []answerSeed
}

type answerSeed struct {
	text    string
	correct bool
}

func ask(text string, answers ...answerSeed) questionSeed {
	return questionSeed{text: text, answers: answers}
}

func right(text string) answerSeed { return answerSeed{text: text, correct: true} }
func wrong(text string) answerSeed { return answerSeed{text: text} }

var starterTemplates = []templateSeed{
	{
		name:        "US Civics Test",
		description: "Foundational civics questions inspired by the USCIS exam.",
		questions: []questionSeed{
			ask("What is the supreme law of the land?",
				right("The Constitution"), wrong("The Declaration of Independence"), wrong("The Bill of Rights"), wrong("The Articles of Confederation")),
			ask("How many U.S. Senators are there?",
				right("100"), wrong("50"), wrong("435"), wrong("101")),
			ask("Who is in charge of the executive branch?",
				right("The President"), wrong("The Chief Justice"), wrong("The Speaker of the House"), wrong("The Senate Majority Leader")),
			ask("What do we call the first ten amendments to the Constitution?",
				right("The Bill of Rights"), wrong("The Preamble"), wrong("The Federalist Papers"), wrong("The Articles")),
		},
	},
	{
		name:        "Programming Fundamentals",
		description: "Core concepts for junior developers.",
		questions: []questionSeed{
			ask("Which data structure uses FIFO ordering?",
				right("Queue"), wrong("Stack"), wrong("Tree"), wrong("Graph")),
			ask("What does HTTP stand for?",
				right("HyperText Transfer Protocol"), wrong("Hyper Transfer Text Program"), wrong("High Throughput Transfer Process"), wrong("Host Transfer Text Protocol")),
			ask("Which keyword creates a constant in JavaScript?",
				right("const"), wrong("var"), wrong("let"), wrong("static")),
			ask("In OOP, bundling data and methods together is called:",
				right("Encapsulation"), wrong("Inheritance"), wrong("Polymorphism"), wrong("Abstraction")),
		},
	},
	{
		name:        "Planets of the Solar System",
		description: "A quick quiz about our planetary neighbors.",
		questions: []questionSeed{
			ask("Which planet is known as the Red Planet?",
				right("Mars"), wrong("Venus"), wrong("Jupiter"), wrong("Mercury")),
			ask("Which planet is the largest in our solar system?",
				right("Jupiter"), wrong("Saturn"), wrong("Earth"), wrong("Neptune")),
			ask("Which planet has the most prominent ring system?",
				right("Saturn"), wrong("Uranus"), wrong("Jupiter"), wrong("Neptune")),
		},
	},
	{
		name:        "Elements Essentials",
		description: "Basic chemistry symbols and properties.",
		questions: []questionSeed{
			ask("What is the chemical symbol for Gold?",
				right("Au"), wrong("Ag"), wrong("Gd"), wrong("Go")),
			ask("Which element has atomic number 1?",
				right("Hydrogen"), wrong("Helium"), wrong("Oxygen"), wrong("Carbon")),
			ask("What is the chemical symbol for Sodium?",
				right("Na"), wrong("So"), wrong("Sn"), wrong("Sd")),
			ask("Which element is a noble gas?",
				right("Neon"), wrong("Nitrogen"), wrong("Nickel"), wrong("Neodymium")),
		},
	},
}

// BuildTemplates returns fresh starter certifications for a guild, all bound
// to rankID. Ids are assigned by storage on insert.
func BuildTemplates(guildID, rankID uuid.UUID) []model.Certification {
	certs := make([]model.Certification, 0, len(starterTemplates))
	for _, seed := range starterTemplates {
		cert := model.Certification{
			GuildID:             guildID,
			RankID:              rankID,
			Name:                seed.name,
			Description:         seed.description,
			PassingScorePercent: TemplatePassingScore,
			IsTemplate:          true,
			Questions:           make([]model.Question, 0, len(seed.questions)),
		}
		for _, qs := range seed.questions {
			question := model.Question{Text: qs.text, Answers: make([]model.Answer, 0, len(qs.answers))}
			for i, as := range qs.answers {
				question.Answers = append(question.Answers, model.Answer{
					Text:      as.text,
					IsCorrect: as.correct,
					Order:     i + 1,
				})
			}
			cert.Questions = append(cert.Questions, question)
		}
		certs = append(certs, cert)
	}
	return certs
}
