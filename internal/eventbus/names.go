package eventbus

// Well-known event names shared by producers and consumers. The bus accepts
// any non-empty name; these only keep the vocabulary in one place.
const (
	GameInit   = "game.init"
	GameStart  = "game.start"
	GamePause  = "game.pause"
	GameResume = "game.resume"
	GameStop   = "game.stop"

	StateChange = "state.change"

	SceneLoad   = "scene.load"
	SceneUnload = "scene.unload"
	SceneReady  = "scene.ready"

	PlayerSpawn    = "player.spawn"
	PlayerMove     = "player.move"
	PlayerInteract = "player.interact"
	PlayerDamage   = "player.damage"

	InputKey      = "input.key"
	InputMouse    = "input.mouse"
	InputInteract = "input.interact"
	InputScanner  = "input.scanner"
	InputPause    = "input.pause"

	PointerLockAcquired = "pointerlock.acquired"
	PointerLockReleased = "pointerlock.released"
	PointerLockError    = "pointerlock.error"

	UIShow            = "ui.show"
	UIHide            = "ui.hide"
	UILoadingProgress = "ui.loading.progress"
	UIMessage         = "ui.message"

	PuzzleStart    = "puzzle.start"
	PuzzleComplete = "puzzle.complete"
	PuzzleFail     = "puzzle.fail"

	PerformanceWarning  = "performance.warning"
	PerformanceCritical = "performance.critical"
)
