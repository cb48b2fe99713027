package ledger

// votingSystemABI is the subset of the VotingSystem contract the server calls.
const votingSystemABI = `[
  {
    "type": "function",
    "name": "createElection",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "_title", "type": "string"},
      {"name": "_description", "type": "string"},
      {"name": "_startTime", "type": "uint256"},
      {"name": "_endTime", "type": "uint256"},
      {"name": "_isPublic", "type": "bool"},
      {"name": "_candidateNames", "type": "string[]"},
      {"name": "_candidateDescriptions", "type": "string[]"}
    ],
    "outputs": [{"name": "", "type": "uint256"}]
  },
  {
    "type": "function",
    "name": "vote",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "_electionId", "type": "uint256"},
      {"name": "_candidateId", "type": "uint256"}
    ],
    "outputs": []
  },
  {
    "type": "function",
    "name": "hasVoted",
    "stateMutability": "view",
    "inputs": [
      {"name": "_electionId", "type": "uint256"},
      {"name": "_voter", "type": "address"}
    ],
    "outputs": [{"name": "", "type": "bool"}]
  },
  {
    "type": "function",
    "name": "getElectionSummary",
    "stateMutability": "view",
    "inputs": [{"name": "_electionId", "type": "uint256"}],
    "outputs": [
      {
        "name": "",
        "type": "tuple",
        "components": [
          {"name": "id", "type": "uint256"},
          {"name": "title", "type": "string"},
          {"name": "description", "type": "string"},
          {"name": "startTime", "type": "uint256"},
          {"name": "endTime", "type": "uint256"},
          {"name": "creator", "type": "address"},
          {"name": "isPublic", "type": "bool"},
          {"name": "candidateCount", "type": "uint256"},
          {"name": "totalVotes", "type": "uint256"},
          {"name": "initialized", "type": "bool"}
        ]
      }
    ]
  },
  {
    "type": "function",
    "name": "getAllCandidates",
    "stateMutability": "view",
    "inputs": [{"name": "_electionId", "type": "uint256"}],
    "outputs": [
      {
        "name": "",
        "type": "tuple[]",
        "components": [
          {"name": "id", "type": "uint256"},
          {"name": "name", "type": "string"},
          {"name": "description", "type": "string"},
          {"name": "voteCount", "type": "uint256"}
        ]
      }
    ]
  },
  {
    "type": "event",
    "name": "ElectionCreated",
    "anonymous": false,
    "inputs": [
      {"name": "electionId", "type": "uint256", "indexed": true},
      {"name": "creator", "type": "address", "indexed": true}
    ]
  },
  {
    "type": "event",
    "name": "Voted",
    "anonymous": false,
    "inputs": [
      {"name": "electionId", "type": "uint256", "indexed": true},
      {"name": "voter", "type": "address", "indexed": true},
      {"name": "candidateId", "type": "uint256", "indexed": true}
    ]
  }
]`
