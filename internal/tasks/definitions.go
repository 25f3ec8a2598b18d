package tasks

// DefineTasks registers all available tasks
func DefineTasks() {
	// Register general tasks
	RegisterHandler(LogInfoTask.TaskID(), LogInfoTask.HandleExecution)

	// Register contribution sweeps
	RegisterHandler(MahberRolloverTask.TaskID(), MahberRolloverTask.HandleExecution)
	RegisterHandler(GatewayAccountSyncTask.TaskID(), GatewayAccountSyncTask.HandleExecution)

	// Register notification tasks
	RegisterHandler(SendNotificationTask.TaskID(), SendNotificationTask.HandleExecution)
}
