package errors

import "errors"

// Auth / account
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUnauthorized       = errors.New("unauthorized")
)

// Room / lobby
var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomFull            = errors.New("room is full")
	ErrRoomNotWaiting      = errors.New("room is not accepting players")
	ErrNotInRoom           = errors.New("player is not in this room")
	ErrNotHost             = errors.New("only the host may do this")
	ErrInsufficientPlayers = errors.New("need at least 2 players")
	ErrPlayersNotReady     = errors.New("not all players are ready")
	ErrMaxBotsReached      = errors.New("maximum bots reached")
	ErrNotABot             = errors.New("player is not a bot")
)

// Game actions
var (
	ErrRoomNotPlaying      = errors.New("game is not in progress")
	ErrRoomNotFinished     = errors.New("game is not finished")
	ErrNotYourTurn         = errors.New("not your turn")
	ErrCardNotInHand       = errors.New("card not in hand")
	ErrMustFollowSuit      = errors.New("must follow suit")
	ErrMustLeadAceOfSpades = errors.New("must lead the ace of spades")
	ErrTargetNotEligible   = errors.New("target is not eligible for a card request")
	ErrAlreadyFinished     = errors.New("player has already escaped")
	ErrRequestPending      = errors.New("a card request is already pending for this target")
	ErrNoSuchRequest       = errors.New("no such card request")
	ErrAlreadyWatching     = errors.New("already watching a hand")
	ErrNotASpectator       = errors.New("only escaped players may watch a hand")
)
