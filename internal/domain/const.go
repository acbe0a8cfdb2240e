package domain

const (
	// Blockchain constants
	ETHEREUM_ZERO_ADDRESS = "0x0000000000000000000000000000000000000000"

	// DEFAULT_START_BLOCK is where event scanning begins when neither a cursor nor a start block is known
	DEFAULT_START_BLOCK = 5000000

	// Default event names for the two mirrored event classes
	EVENT_SUBMIT_PROPOSAL = "SubmitProposal"
	EVENT_SUBMIT_VOTE     = "SubmitVote"

	// Fields read from event payloads
	FIELD_PROPOSAL_INDEX = "proposalIndex"
	FIELD_UINT_VOTE      = "uintVote"
	FIELD_DELEGATE_KEY   = "delegateKey"
	FIELD_MEMBER_ADDRESS = "memberAddress"
	FIELD_APPLICANT      = "applicant"
	FIELD_APPLICANT_ID   = "applicantId"

	// Poll choices, in child creation order
	CHOICE_NO  = "no"
	CHOICE_YES = "yes"

	// Vote codes emitted by the contract
	VOTE_CODE_YES = 1
	VOTE_CODE_NO  = 2

	// Initial stake recorded for a poll option
	INITIAL_TOTAL_STAKED = "0"
)

// PollChoices lists the poll options created for a proposal; the slice index is the pollChoiceId.
var PollChoices = []string{CHOICE_NO, CHOICE_YES}
