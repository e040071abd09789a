package protocol

// Status codes follow the family-and-sequence scheme the CLI clients already
// parse: E<family>-M-<sequence>. The family groups a command (10 login,
// 20 chat, 30 sources, 40 groups, 50 users, 60 compat API, 90 keygen,
// 99 protocol); the sequence distinguishes failure classes within it.
const (
	StatusOK = "ok"

	// Protocol-level failures.
	StatusParseError     = "E99-M-9900"
	StatusInvalidRequest = "E99-M-9901"
	StatusMissingCommand = "E99-M-9902"
	StatusUnknownCommand = "E99-M-9950"
	StatusInternalError  = "E52-M-5252"

	// Cross-cutting dispatch failures.
	StatusToolDisabled = "E99-M-9960"
	StatusMissingToken = "E99-M-9961"

	// login (1.0)
	StatusLoginMissingCredentials = "E10-M-1050"
	StatusLoginFailed             = "E10-M-1051"

	// logout (1.1)
	StatusLogoutFailed = "E11-M-1150"

	// chat (2.0)
	StatusChatMissingToken    = "E20-M-2000"
	StatusChatMissingQuestion = "E20-M-2001"
	StatusChatFailed          = "E20-M-2002"

	// continue_chat (2.1)
	StatusContinueChatMissingParams = "E21-M-2150"
	StatusContinueChatFailed        = "E21-M-2151"

	// get_chat_info (2.2)
	StatusChatInfoMissingID = "E22-M-2250"
	StatusChatInfoNoData    = "E22-M-2251"
	StatusChatInfoFailed    = "E22-M-2252"

	// create_source (3.0)
	StatusCreateSourceMissingToken  = "E30-M-3050"
	StatusCreateSourceMissingParams = "E30-M-3051"
	StatusCreateSourceInvalidGroups = "E30-M-3052"
	StatusCreateSourceFailed        = "E30-M-3053"
	StatusCreateSourceNoResponse    = "E30-M-3054"
	StatusCreateSourceInternal      = "E30-M-3055"

	// get_source (3.1)
	StatusGetSourceMissingID = "E31-M-3150"
	StatusGetSourceFailed    = "E31-M-3151"

	// list_sources (3.2)
	StatusListSourcesMissingGroup = "E32-M-3250"
	StatusListSourcesFailed       = "E32-M-3251"

	// edit_source (3.3)
	StatusEditSourceMissingID = "E33-M-3350"
	StatusEditSourceFailed    = "E33-M-3351"

	// delete_source (3.4)
	StatusDeleteSourceMissingID = "E34-M-3450"
	StatusDeleteSourceFailed    = "E34-M-3451"

	// list_groups (4.0)
	StatusListGroupsFailed  = "E40-M-4051"
	StatusListGroupsUnknown = "E40-M-4052"

	// store_group (4.1)
	StatusStoreGroupMissingName  = "E41-M-4150"
	StatusStoreGroupMissingToken = "E41-M-4151"
	StatusStoreGroupFailed       = "E41-M-4152"

	// delete_group (4.2)
	StatusDeleteGroupMissingName = "E42-M-4250"
	StatusDeleteGroupFailed      = "E42-M-4251"

	// store_user (5.0)
	StatusStoreUserMissingParams = "E50-M-5050"
	StatusStoreUserFailed        = "E50-M-5051"

	// edit_user (5.1)
	StatusEditUserMissingEmail = "E51-M-5100"
	StatusEditUserFailed       = "E51-M-5151"

	// delete_user (5.2)
	StatusDeleteUserMissingEmail = "E52-M-5250"
	StatusDeleteUserFailed       = "E52-M-5251"

	// oai_comp_api_chat (6.0)
	StatusCompatChatMissingToken = "E60-M-6000"
	StatusCompatChatFailed       = "E60-M-6002"

	// oai_comp_api_continue_chat (6.1)
	StatusCompatContinueMissing = "E61-M-6150"
	StatusCompatContinueFailed  = "E61-M-6151"

	// keygen (9.0)
	StatusKeygenFailed = "E90-M-1150"
)

// NoAccessSentinel replaces the assignable-groups list when the
// restricted-groups policy is active. Clients match on the literal string.
const NoAccessSentinel = "NO ACCESS ALLOWED BY THE MCP-SERVER CONFIG"
