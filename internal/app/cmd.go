package app

// Command はdespesasバイナリのサブコマンド。
type Command string

const (
	CommandServe Command = "serve"
	// CommandCleanup は期限切れセッションを1回削除して終了する。cronから実行する。
	CommandCleanup Command = "cleanup"
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はdistrolessイメージのHEALTHCHECK用。
	CommandHealthcheck Command = "healthcheck"
)

var commands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandCleanup):     CommandCleanup,
	string(CommandMigrate):     CommandMigrate,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand は先頭の引数からサブコマンドを決める。
// 引数なしはserve。未知のコマンドもserveとして扱い、knownにfalseを返す。
func ParseCommand(args []string) (cmd Command, known bool) {
	if len(args) == 0 {
		return CommandServe, true
	}
	if c, ok := commands[args[0]]; ok {
		return c, true
	}
	return CommandServe, false
}
