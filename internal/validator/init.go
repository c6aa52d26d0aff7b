package validator

import (
	"ctchen222/Four-In-A-Row/internal/bot"
	"ctchen222/Four-In-A-Row/internal/game"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// cell: an int coordinate on the board.
	if err := validate.RegisterValidation("cell", func(fl validator.FieldLevel) bool {
		v := fl.Field().Int()
		return v >= 0 && v < game.Size
	}); err != nil {
		panic(err)
	}

	// difficulty: one of the bot levels.
	if err := validate.RegisterValidation("difficulty", func(fl validator.FieldLevel) bool {
		return bot.IsValidDifficulty(fl.Field().String())
	}); err != nil {
		panic(err)
	}
}

func GetValidator() *validator.Validate {
	return validate
}
