package protocol

// Commands understood by the editor peer. Compound commands (play.enter,
// play.exit, play.toggle, asset.refresh, test.run, record.start) are expanded
// by the orchestrator; the rest are forwarded as-is.
const (
	CmdConsoleTail       = "console.tail"
	CmdSceneList         = "scene.list"
	CmdSceneLoad         = "scene.load"
	CmdPlayEnter         = "play.enter"
	CmdPlayExit          = "play.exit"
	CmdPlayToggle        = "play.toggle"
	CmdPlayStatus        = "play.status"
	CmdAssetImport       = "asset.import"
	CmdAssetRefresh      = "asset.refresh"
	CmdAssetReimportAll  = "asset.reimportAll"
	CmdMenuList          = "menu.list"
	CmdMenuExecute       = "menu.execute"
	CmdTestRun           = "test.run"
	CmdScreenshotCapture = "screenshot.capture"
	CmdRecordStart       = "record.start"
	CmdRecordStop        = "record.stop"
	CmdRecordStatus      = "record.status"
	CmdScriptExecute     = "script.execute"
	CmdBuildPlayer       = "build.player"
	CmdEditorPing        = "editor.ping"
)

// Events emitted by the editor peer.
const (
	EventLog                   = "log"
	EventPlayModeChanged       = "playModeChanged"
	EventCompilationStarted    = "compilation.started"
	EventCompilationFinished   = "compilation.finished"
	EventAssetRefreshComplete  = "asset.refreshComplete"
	EventAssetImportComplete   = "asset.importComplete"
	EventAssetReimportComplete = "asset.reimportAllComplete"
	EventDomainReloadStarting  = "domain.reloadStarting"
	EventTestFinished          = "test.finished"
	EventRecordFinished        = "record.finished"
)

// Play-mode states reported in playModeChanged payloads.
const (
	PlayStateExitingEditMode = "ExitingEditMode"
	PlayStateEnteredPlayMode = "EnteredPlayMode"
	PlayStateExitingPlayMode = "ExitingPlayMode"
	PlayStateEnteredEditMode = "EnteredEditMode"
)
