package api

import (
	"github.com/gofiber/fiber/v2"
)

func MapAPIs(app *fiber.App, baseURL string) {
	api := app.Group(baseURL).Name("API")
	{
		polls := api.Group("/polls").Name("Polls API")
		{
			polls.Get("/", listPolls)
			polls.Get("/:pollId", getPoll)
			polls.Post("/", createPoll)
			polls.Delete("/:pollId", deletePoll)

			polls.Post("/:pollId/vote", stageVote)
			polls.Post("/:pollId/vote/confirm", confirmVote)
			polls.Post("/:pollId/vote/cancel", cancelVote)
		}

		users := api.Group("/users").Name("Users API")
		{
			users.Get("/me", getUserinfo)
		}

		api.Get("/notifications", listNotifications)
	}
}
